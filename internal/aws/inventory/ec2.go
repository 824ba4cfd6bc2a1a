package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

const (
	// DefaultPlatform is reported for instances without a Platform value
	DefaultPlatform = "Linux/UNIX"

	describeImagesBatch = 100
	filterValuesBatch   = 200
)

// EC2Instance is one row of the EC2 inventory
type EC2Instance struct {
	AccountID             string `csv:"AccountId" json:"AccountId"`
	Region                string `csv:"Region" json:"Region"`
	InstanceID            string `csv:"InstanceId" json:"InstanceId"`
	Name                  string `csv:"Name" json:"Name"`
	State                 string `csv:"State" json:"State"`
	Platform              string `csv:"Platform" json:"Platform"`
	Architecture          string `csv:"Architecture" json:"Architecture"`
	ImageID               string `csv:"ImageId" json:"ImageId"`
	ImageName             string `csv:"ImageName" json:"ImageName"`
	InstanceType          string `csv:"InstanceType" json:"InstanceType"`
	AvailabilityZone      string `csv:"AvailabilityZone" json:"AvailabilityZone"`
	Tenancy               string `csv:"Tenancy" json:"Tenancy"`
	PrivateIPAddress      string `csv:"PrivateIpAddress" json:"PrivateIpAddress"`
	PublicIPAddress       string `csv:"PublicIpAddress" json:"PublicIpAddress"`
	VpcID                 string `csv:"VpcId" json:"VpcId"`
	SubnetID              string `csv:"SubnetId" json:"SubnetId"`
	IamInstanceProfileArn string `csv:"IamInstanceProfileArn" json:"IamInstanceProfileArn"`
	LaunchTime            string `csv:"LaunchTime" json:"LaunchTime"`
	UptimeDays            int    `csv:"UptimeDays" json:"UptimeDays"`
	SecurityGroupIDs      string `csv:"SecurityGroupIds" json:"SecurityGroupIds"`
	SecurityGroupNames    string `csv:"SecurityGroupNames" json:"SecurityGroupNames"`
	Volumes               string `csv:"Volumes" json:"Volumes"`
	Tags                  string `csv:"Tags" json:"Tags"`
}

// AttachedVolume describes a volume attached to an instance
type AttachedVolume struct {
	VolumeID   string
	SizeGiB    int64
	VolumeType string
	Iops       *int64
	Throughput *int64
	Device     string
}

// String renders "vol-1(8GiB gp3 3000iops 125MB/s, /dev/xvda)"
func (v AttachedVolume) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%dGiB %s", v.VolumeID, v.SizeGiB, v.VolumeType)
	if v.Iops != nil {
		fmt.Fprintf(&b, " %diops", *v.Iops)
	}
	if v.Throughput != nil {
		fmt.Fprintf(&b, " %dMB/s", *v.Throughput)
	}
	fmt.Fprintf(&b, ", %s)", v.Device)
	return b.String()
}

// SummarizeVolumes joins volume descriptions with "; "
func SummarizeVolumes(vols []AttachedVolume) string {
	parts := make([]string, 0, len(vols))
	for _, v := range vols {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// EC2Row builds the inventory row for inst
func EC2Row(account, region string, inst *ec2.Instance, imageNames map[string]string, vols []AttachedVolume, now time.Time) EC2Instance {
	row := EC2Instance{
		AccountID:        account,
		Region:           region,
		InstanceID:       aws.StringValue(inst.InstanceId),
		Name:             awslib.NameTag(inst.Tags),
		Platform:         aws.StringValue(inst.Platform),
		Architecture:     aws.StringValue(inst.Architecture),
		ImageID:          aws.StringValue(inst.ImageId),
		InstanceType:     aws.StringValue(inst.InstanceType),
		PrivateIPAddress: aws.StringValue(inst.PrivateIpAddress),
		PublicIPAddress:  aws.StringValue(inst.PublicIpAddress),
		VpcID:            aws.StringValue(inst.VpcId),
		SubnetID:         aws.StringValue(inst.SubnetId),
		LaunchTime:       formatTime(inst.LaunchTime),
		Volumes:          SummarizeVolumes(vols),
	}
	if row.Platform == "" {
		row.Platform = DefaultPlatform
	}
	row.ImageName = imageNames[row.ImageID]
	if inst.State != nil {
		row.State = aws.StringValue(inst.State.Name)
	}
	if inst.Placement != nil {
		row.AvailabilityZone = aws.StringValue(inst.Placement.AvailabilityZone)
		row.Tenancy = aws.StringValue(inst.Placement.Tenancy)
	}
	if inst.IamInstanceProfile != nil {
		row.IamInstanceProfileArn = aws.StringValue(inst.IamInstanceProfile.Arn)
	}
	if inst.LaunchTime != nil {
		row.UptimeDays = awslib.AgeInDays(now, *inst.LaunchTime)
	}

	var ids, names []string
	for _, sg := range inst.SecurityGroups {
		ids = append(ids, aws.StringValue(sg.GroupId))
		names = append(names, aws.StringValue(sg.GroupName))
	}
	row.SecurityGroupIDs = strings.Join(ids, ", ")
	row.SecurityGroupNames = strings.Join(names, ", ")

	tags := make(map[string]string, len(inst.Tags))
	for _, t := range inst.Tags {
		tags[aws.StringValue(t.Key)] = aws.StringValue(t.Value)
	}
	row.Tags = joinTags(tags)
	return row
}

// SortEC2 orders rows by region, name and instance ID
func SortEC2(rows []EC2Instance) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.InstanceID < b.InstanceID
	})
}

// EC2 inventories every instance in regions
func (c *Collector) EC2(ctx context.Context, regions []string) ([]EC2Instance, []RegionError) {
	now := c.now()
	rows, errs := collectRegions(ctx, c, "EC2 inventory", regions, func(ctx context.Context, clients *awslib.Clients) ([]EC2Instance, error) {
		return c.ec2Region(ctx, clients, now)
	})
	SortEC2(rows)
	return rows, errs
}

func (c *Collector) ec2Region(ctx context.Context, clients *awslib.Clients, now time.Time) ([]EC2Instance, error) {
	var instances []*ec2.Instance
	err := clients.EC2.DescribeInstancesPagesWithContext(ctx, &ec2.DescribeInstancesInput{},
		func(page *ec2.DescribeInstancesOutput, lastPage bool) bool {
			for _, r := range page.Reservations {
				instances = append(instances, r.Instances...)
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, nil
	}

	imageSet := make(map[string]struct{})
	instanceIDs := make([]string, 0, len(instances))
	for _, inst := range instances {
		instanceIDs = append(instanceIDs, aws.StringValue(inst.InstanceId))
		if id := aws.StringValue(inst.ImageId); id != "" {
			imageSet[id] = struct{}{}
		}
	}

	imageNames := imageNames(ctx, clients.EC2, sortedSet(imageSet))
	volumes := volumesByInstance(ctx, clients.EC2, instanceIDs)

	rows := make([]EC2Instance, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, EC2Row(c.AccountID, clients.Region, inst, imageNames, volumes[aws.StringValue(inst.InstanceId)], now))
	}
	return rows, nil
}

// imageNames resolves AMI names in batches. AMIs shared from other accounts may
// be unreadable; such batches are skipped.
func imageNames(ctx context.Context, svc ec2iface.EC2API, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, batch := range chunk(ids, describeImagesBatch) {
		out, err := svc.DescribeImagesWithContext(ctx, &ec2.DescribeImagesInput{
			ImageIds: aws.StringSlice(batch),
		})
		if err != nil {
			logging.Debug("Skipping unreadable AMI batch", map[string]interface{}{
				"images": len(batch),
				"error":  err.Error(),
			})
			continue
		}
		for _, img := range out.Images {
			names[aws.StringValue(img.ImageId)] = aws.StringValue(img.Name)
		}
	}
	return names
}

// volumesByInstance maps instance IDs to their attached volumes. Lookup
// failures leave the volume column empty.
func volumesByInstance(ctx context.Context, svc ec2iface.EC2API, instanceIDs []string) map[string][]AttachedVolume {
	result := make(map[string][]AttachedVolume)
	for _, batch := range chunk(instanceIDs, filterValuesBatch) {
		err := svc.DescribeVolumesPagesWithContext(ctx, &ec2.DescribeVolumesInput{
			Filters: []*ec2.Filter{{
				Name:   aws.String("attachment.instance-id"),
				Values: aws.StringSlice(batch),
			}},
		}, func(page *ec2.DescribeVolumesOutput, lastPage bool) bool {
			for _, vol := range page.Volumes {
				for _, att := range vol.Attachments {
					id := aws.StringValue(att.InstanceId)
					if id == "" {
						continue
					}
					result[id] = append(result[id], AttachedVolume{
						VolumeID:   aws.StringValue(vol.VolumeId),
						SizeGiB:    aws.Int64Value(vol.Size),
						VolumeType: aws.StringValue(vol.VolumeType),
						Iops:       vol.Iops,
						Throughput: vol.Throughput,
						Device:     aws.StringValue(att.Device),
					})
				}
			}
			return !lastPage
		})
		if err != nil {
			logging.Debug("Skipping volume lookup", map[string]interface{}{
				"instances": len(batch),
				"error":     err.Error(),
			})
		}
	}
	return result
}
