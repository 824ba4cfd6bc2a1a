package inventory

import (
	"context"
	"fmt"
	"strings"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"
)

// CreatedTimeLayout formats the RDS instance creation time
const CreatedTimeLayout = "2006-01-02 15:04:05"

// DBInstance is one row of the RDS inventory
type DBInstance struct {
	AccountID           string `csv:"AccountId" json:"AccountId"`
	Region              string `csv:"Region" json:"Region"`
	DBIdentifier        string `csv:"DBIdentifier" json:"DBIdentifier"`
	Engine              string `csv:"Engine" json:"Engine"`
	EngineVersion       string `csv:"EngineVersion" json:"EngineVersion"`
	Status              string `csv:"Status" json:"Status"`
	InstanceClass       string `csv:"InstanceClass" json:"InstanceClass"`
	AllocatedStorage    int64  `csv:"AllocatedStorage(GB)" json:"AllocatedStorage"`
	StorageType         string `csv:"StorageType" json:"StorageType"`
	IOPS                string `csv:"IOPS" json:"IOPS"`
	AvailabilityZone    string `csv:"AvailabilityZone" json:"AvailabilityZone"`
	MultiAZ             bool   `csv:"MultiAZ" json:"MultiAZ"`
	VpcID               string `csv:"VpcId" json:"VpcId"`
	SubnetGroup         string `csv:"SubnetGroup" json:"SubnetGroup"`
	Endpoint            string `csv:"Endpoint" json:"Endpoint"`
	Port                string `csv:"Port" json:"Port"`
	SecurityGroupIDs    string `csv:"SecurityGroupIds" json:"SecurityGroupIds"`
	SecurityGroupStatus string `csv:"SecurityGroupStatus" json:"SecurityGroupStatus"`
	BackupWindow        string `csv:"BackupWindow" json:"BackupWindow"`
	MaintenanceWindow   string `csv:"MaintenanceWindow" json:"MaintenanceWindow"`
	CreatedTime         string `csv:"CreatedTime" json:"CreatedTime"`
	Tags                string `csv:"Tags" json:"Tags"`
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

// DBRow builds the inventory row for db
func DBRow(account, region string, db *rds.DBInstance, tags map[string]string) DBInstance {
	row := DBInstance{
		AccountID:         account,
		Region:            region,
		DBIdentifier:      aws.StringValue(db.DBInstanceIdentifier),
		Engine:            aws.StringValue(db.Engine),
		EngineVersion:     aws.StringValue(db.EngineVersion),
		Status:            aws.StringValue(db.DBInstanceStatus),
		InstanceClass:     aws.StringValue(db.DBInstanceClass),
		AllocatedStorage:  aws.Int64Value(db.AllocatedStorage),
		StorageType:       aws.StringValue(db.StorageType),
		IOPS:              optionalInt(db.Iops),
		AvailabilityZone:  aws.StringValue(db.AvailabilityZone),
		MultiAZ:           aws.BoolValue(db.MultiAZ),
		BackupWindow:      aws.StringValue(db.PreferredBackupWindow),
		MaintenanceWindow: aws.StringValue(db.PreferredMaintenanceWindow),
		Tags:              joinTags(tags),
	}
	if db.DBSubnetGroup != nil {
		row.VpcID = aws.StringValue(db.DBSubnetGroup.VpcId)
		row.SubnetGroup = aws.StringValue(db.DBSubnetGroup.DBSubnetGroupName)
	}
	if db.Endpoint != nil {
		row.Endpoint = aws.StringValue(db.Endpoint.Address)
		row.Port = optionalInt(db.Endpoint.Port)
	}
	if db.InstanceCreateTime != nil {
		row.CreatedTime = db.InstanceCreateTime.UTC().Format(CreatedTimeLayout)
	}

	var ids, statuses []string
	for _, sg := range db.VpcSecurityGroups {
		if id := aws.StringValue(sg.VpcSecurityGroupId); id != "" {
			ids = append(ids, id)
		}
		if status := aws.StringValue(sg.Status); status != "" {
			statuses = append(statuses, status)
		}
	}
	row.SecurityGroupIDs = strings.Join(ids, ",")
	row.SecurityGroupStatus = strings.Join(statuses, ",")
	return row
}

// RDS inventories every DB instance in regions
func (c *Collector) RDS(ctx context.Context, regions []string) ([]DBInstance, []RegionError) {
	return collectRegions(ctx, c, "RDS inventory", regions, func(ctx context.Context, clients *awslib.Clients) ([]DBInstance, error) {
		var instances []*rds.DBInstance
		err := clients.RDS.DescribeDBInstancesPagesWithContext(ctx, &rds.DescribeDBInstancesInput{},
			func(page *rds.DescribeDBInstancesOutput, lastPage bool) bool {
				instances = append(instances, page.DBInstances...)
				return !lastPage
			})
		if err != nil {
			return nil, fmt.Errorf("failed to describe DB instances: %w", err)
		}

		rows := make([]DBInstance, 0, len(instances))
		for _, db := range instances {
			rows = append(rows, DBRow(c.AccountID, clients.Region, db, dbTags(ctx, clients.RDS, db)))
		}
		return rows, nil
	})
}

// dbTags reads the tags of db. An unreadable tag list leaves the column empty.
func dbTags(ctx context.Context, svc rdsiface.RDSAPI, db *rds.DBInstance) map[string]string {
	if db.DBInstanceArn == nil {
		return nil
	}
	out, err := svc.ListTagsForResourceWithContext(ctx, &rds.ListTagsForResourceInput{
		ResourceName: db.DBInstanceArn,
	})
	if err != nil {
		logging.Debug("Failed to list DB instance tags", map[string]interface{}{
			"db_instance": aws.StringValue(db.DBInstanceIdentifier),
			"error":       err.Error(),
		})
		return nil
	}
	tags := make(map[string]string, len(out.TagList))
	for _, t := range out.TagList {
		tags[aws.StringValue(t.Key)] = aws.StringValue(t.Value)
	}
	return tags
}
