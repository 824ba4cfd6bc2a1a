package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloudaudit/internal/logging"
	"cloudaudit/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
)

// IAMUser is one row of the IAM user inventory
type IAMUser struct {
	UserName           string `csv:"UserName" json:"UserName"`
	UserID             string `csv:"UserId" json:"UserId"`
	Arn                string `csv:"Arn" json:"Arn"`
	Path               string `csv:"Path" json:"Path"`
	CreateDate         string `csv:"CreateDate" json:"CreateDate"`
	PasswordLastUsed   string `csv:"PasswordLastUsed" json:"PasswordLastUsed"`
	Groups             string `csv:"Groups" json:"Groups"`
	ManagedPolicies    string `csv:"ManagedPolicies" json:"ManagedPolicies"`
	InlinePolicies     string `csv:"InlinePolicies" json:"InlinePolicies"`
	AccessKeyCount     int    `csv:"AccessKeyCount" json:"AccessKeyCount"`
	MFADevicesCount    int    `csv:"MFADevicesCount" json:"MFADevicesCount"`
	SSHPublicKeysCount int    `csv:"SSHPublicKeysCount" json:"SSHPublicKeysCount"`
	Tags               string `csv:"Tags" json:"Tags"`
}

// AccessKey is one row of the access key sheet
type AccessKey struct {
	UserName        string `csv:"UserName" json:"UserName"`
	AccessKeyID     string `csv:"AccessKeyId" json:"AccessKeyId"`
	Status          string `csv:"Status" json:"Status"`
	CreateDate      string `csv:"CreateDate" json:"CreateDate"`
	LastUsedDate    string `csv:"LastUsedDate" json:"LastUsedDate"`
	LastUsedRegion  string `csv:"LastUsedRegion" json:"LastUsedRegion"`
	LastUsedService string `csv:"LastUsedService" json:"LastUsedService"`
}

// AccountSummary is the single row of the account sheet
type AccountSummary struct {
	AccountID      string `csv:"AccountId" json:"AccountId"`
	RootMFAEnabled bool   `csv:"RootMFAEnabled" json:"RootMFAEnabled"`
	Users          int64  `csv:"Users" json:"Users"`
	Groups         int64  `csv:"Groups" json:"Groups"`
	Roles          int64  `csv:"Roles" json:"Roles"`
	Policies       int64  `csv:"Policies" json:"Policies"`
	PasswordPolicy string `csv:"PasswordPolicy" json:"PasswordPolicy"`
}

// IAMInventory is the result of an IAM inventory
type IAMInventory struct {
	Account    AccountSummary
	Users      []IAMUser
	AccessKeys []AccessKey
}

type userInventory struct {
	user IAMUser
	keys []AccessKey
}

// IAM inventories the account summary, every user and every access key.
// IAM is global, so the home region clients are used.
func (c *Collector) IAM(ctx context.Context, svc iamiface.IAMAPI) (*IAMInventory, error) {
	account, err := c.accountSummary(ctx, svc)
	if err != nil {
		return nil, err
	}

	var users []*iam.User
	err = svc.ListUsersPagesWithContext(ctx, &iam.ListUsersInput{}, func(page *iam.ListUsersOutput, lastPage bool) bool {
		users = append(users, page.Users...)
		return !lastPage
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	logging.Info(fmt.Sprintf("Discovered %d IAM users", len(users)))

	names := make([]string, 0, len(users))
	byName := make(map[string]*iam.User, len(users))
	for _, u := range users {
		name := aws.StringValue(u.UserName)
		names = append(names, name)
		byName[name] = u
	}

	results := worker.Run(ctx, c.workers(), names, func(ctx context.Context, name string) (userInventory, error) {
		return readUser(ctx, svc, byName[name]), nil
	})
	perUser, _ := worker.Split(results)

	inv := &IAMInventory{Account: account}
	for _, u := range perUser {
		inv.Users = append(inv.Users, u.user)
		inv.AccessKeys = append(inv.AccessKeys, u.keys...)
	}
	return inv, nil
}

func (c *Collector) accountSummary(ctx context.Context, svc iamiface.IAMAPI) (AccountSummary, error) {
	summary := AccountSummary{AccountID: c.AccountID, PasswordPolicy: "{}"}

	out, err := svc.GetAccountSummaryWithContext(ctx, &iam.GetAccountSummaryInput{})
	if err != nil {
		return summary, fmt.Errorf("failed to get account summary: %w", err)
	}
	m := out.SummaryMap
	summary.RootMFAEnabled = aws.Int64Value(m["AccountMFAEnabled"]) == 1
	summary.Users = aws.Int64Value(m["Users"])
	summary.Groups = aws.Int64Value(m["Groups"])
	summary.Roles = aws.Int64Value(m["Roles"])
	summary.Policies = aws.Int64Value(m["Policies"])

	policy, err := svc.GetAccountPasswordPolicyWithContext(ctx, &iam.GetAccountPasswordPolicyInput{})
	if err != nil {
		// No password policy is a normal account state
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == iam.ErrCodeNoSuchEntityException {
			return summary, nil
		}
		logging.Warn(fmt.Sprintf("Failed to read password policy: %v", err))
		return summary, nil
	}
	if data, err := json.Marshal(policy.PasswordPolicy); err == nil {
		summary.PasswordPolicy = string(data)
	}
	return summary, nil
}

// readUser gathers one user's details. Every sub-read that fails contributes nothing.
func readUser(ctx context.Context, svc iamiface.IAMAPI, u *iam.User) userInventory {
	name := aws.StringValue(u.UserName)
	in := aws.String(name)

	row := IAMUser{
		UserName:         name,
		UserID:           aws.StringValue(u.UserId),
		Arn:              aws.StringValue(u.Arn),
		Path:             aws.StringValue(u.Path),
		CreateDate:       formatTime(u.CreateDate),
		PasswordLastUsed: formatTime(u.PasswordLastUsed),
	}

	var groups []string
	_ = svc.ListGroupsForUserPagesWithContext(ctx, &iam.ListGroupsForUserInput{UserName: in},
		func(page *iam.ListGroupsForUserOutput, lastPage bool) bool {
			for _, g := range page.Groups {
				groups = append(groups, aws.StringValue(g.GroupName))
			}
			return !lastPage
		})
	row.Groups = strings.Join(groups, ", ")

	var managed []string
	_ = svc.ListAttachedUserPoliciesPagesWithContext(ctx, &iam.ListAttachedUserPoliciesInput{UserName: in},
		func(page *iam.ListAttachedUserPoliciesOutput, lastPage bool) bool {
			for _, p := range page.AttachedPolicies {
				managed = append(managed, aws.StringValue(p.PolicyName))
			}
			return !lastPage
		})
	row.ManagedPolicies = strings.Join(managed, ", ")

	var inline []string
	_ = svc.ListUserPoliciesPagesWithContext(ctx, &iam.ListUserPoliciesInput{UserName: in},
		func(page *iam.ListUserPoliciesOutput, lastPage bool) bool {
			inline = append(inline, aws.StringValueSlice(page.PolicyNames)...)
			return !lastPage
		})
	row.InlinePolicies = strings.Join(inline, ", ")

	keys := accessKeys(ctx, svc, name)
	row.AccessKeyCount = len(keys)

	if mfa, err := svc.ListMFADevicesWithContext(ctx, &iam.ListMFADevicesInput{UserName: in}); err == nil {
		row.MFADevicesCount = len(mfa.MFADevices)
	}

	if ssh, err := svc.ListSSHPublicKeysWithContext(ctx, &iam.ListSSHPublicKeysInput{UserName: in}); err == nil {
		row.SSHPublicKeysCount = len(ssh.SSHPublicKeys)
	}

	if tags, err := svc.ListUserTagsWithContext(ctx, &iam.ListUserTagsInput{UserName: in}); err == nil {
		m := make(map[string]string, len(tags.Tags))
		for _, t := range tags.Tags {
			m[aws.StringValue(t.Key)] = aws.StringValue(t.Value)
		}
		row.Tags = joinTags(m)
	}

	return userInventory{user: row, keys: keys}
}

func accessKeys(ctx context.Context, svc iamiface.IAMAPI, user string) []AccessKey {
	var keys []AccessKey
	err := svc.ListAccessKeysPagesWithContext(ctx, &iam.ListAccessKeysInput{UserName: aws.String(user)},
		func(page *iam.ListAccessKeysOutput, lastPage bool) bool {
			for _, k := range page.AccessKeyMetadata {
				keys = append(keys, AccessKey{
					UserName:    user,
					AccessKeyID: aws.StringValue(k.AccessKeyId),
					Status:      aws.StringValue(k.Status),
					CreateDate:  formatTime(k.CreateDate),
				})
			}
			return !lastPage
		})
	if err != nil {
		logging.Debug("Failed to list access keys", map[string]interface{}{
			"user_name": user,
			"error":     err.Error(),
		})
	}

	for i := range keys {
		out, err := svc.GetAccessKeyLastUsedWithContext(ctx, &iam.GetAccessKeyLastUsedInput{
			AccessKeyId: aws.String(keys[i].AccessKeyID),
		})
		if err != nil || out.AccessKeyLastUsed == nil {
			continue
		}
		lu := out.AccessKeyLastUsed
		keys[i].LastUsedDate = formatTime(lu.LastUsedDate)
		keys[i].LastUsedRegion = aws.StringValue(lu.Region)
		keys[i].LastUsedService = aws.StringValue(lu.ServiceName)
	}
	return keys
}

