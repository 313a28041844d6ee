// Where: internal/domain/stack/database.go
// What: Single-instance PostgreSQL in the private subnets with a generated credential.
// Why: Step 6; the task reads the endpoint and the secret produced here.
package stack

import (
	"encoding/json"
	"strconv"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/rds"
	"github.com/awslabs/goformation/v7/cloudformation/secretsmanager"
	"github.com/poruru/efstack/internal/domain/cfn"
)

const secretExcludeCharacters = " %+~`#$&*()|[]{}:;<>?!'/@\"\\"

func resolveSecret(secretID, field string) string {
	return cloudformation.Join("", []string{
		"{{resolve:secretsmanager:", cloudformation.Ref(secretID), ":SecretString:" + field + "::}}",
	})
}

func (b *builder) database() error {
	db := b.opts.Database
	policy := b.deletionPolicy(cfn.DeletionPolicySnapshot)

	if err := b.tpl.Declare(DBSubnetGroupID, &rds.DBSubnetGroup{
		DBSubnetGroupDescription:             "Private subnets for " + DBInstanceID,
		SubnetIds:                            refs(b.privateSubnets),
		AWSCloudFormationDeletionPolicy:      cfn.DeletionPolicyDelete,
		AWSCloudFormationUpdateReplacePolicy: cfn.DeletionPolicyDelete,
	}); err != nil {
		return err
	}

	username, password := db.Username, cloudformation.Ref(DBPasswordParameterID)
	if db.GenerateCredentials {
		template, err := json.Marshal(map[string]string{"username": db.Username})
		if err != nil {
			return err
		}
		secretPolicy := b.deletionPolicy(cfn.DeletionPolicyRetain)
		if err := b.tpl.Declare(DBSecretID, &secretsmanager.Secret{
			Description: cloudformation.String("Generated master credential for " + DBInstanceID),
			GenerateSecretString: &secretsmanager.Secret_GenerateSecretString{
				SecretStringTemplate: cloudformation.String(string(template)),
				GenerateStringKey:    cloudformation.String("password"),
				PasswordLength:       cloudformation.Int(30),
				ExcludeCharacters:    cloudformation.String(secretExcludeCharacters),
			},
			AWSCloudFormationDeletionPolicy:      secretPolicy,
			AWSCloudFormationUpdateReplacePolicy: replacePolicy(secretPolicy),
		}); err != nil {
			return err
		}
		username = resolveSecret(DBSecretID, "username")
		password = resolveSecret(DBSecretID, "password")
	} else if err := b.tpl.AddParameter(DBPasswordParameterID, cfn.Parameter{
		Type:        "String",
		Description: "Master password for " + DBInstanceID,
		NoEcho:      true,
	}); err != nil {
		return err
	}

	if err := b.tpl.Declare(DBInstanceID, &rds.DBInstance{
		Engine:                               cloudformation.String("postgres"),
		EngineVersion:                        cloudformation.String(db.EngineVersion),
		DBInstanceClass:                      cloudformation.String(db.InstanceClass),
		AllocatedStorage:                     cloudformation.String(strconv.Itoa(db.AllocatedStorage)),
		StorageType:                          cloudformation.String("gp2"),
		MultiAZ:                              cloudformation.Bool(false),
		PubliclyAccessible:                   cloudformation.Bool(false),
		DBName:                               cloudformation.String(db.Name),
		Port:                                 cloudformation.String(strconv.Itoa(DatabasePort)),
		MasterUsername:                       cloudformation.String(username),
		MasterUserPassword:                   cloudformation.String(password),
		DBSubnetGroupName:                    cloudformation.String(cloudformation.Ref(DBSubnetGroupID)),
		VPCSecurityGroups:                    []string{cloudformation.GetAtt(DBSecurityGroupID, "GroupId")},
		BackupRetentionPeriod:                cloudformation.Int(db.BackupRetentionDays),
		CopyTagsToSnapshot:                   cloudformation.Bool(true),
		Tags:                                 b.nameTag(DBInstanceID),
		AWSCloudFormationDeletionPolicy:      policy,
		AWSCloudFormationUpdateReplacePolicy: replacePolicy(policy),
	}); err != nil {
		return err
	}

	if !db.GenerateCredentials {
		return nil
	}
	if err := b.tpl.Declare(DBSecretAttachmentID, &secretsmanager.SecretTargetAttachment{
		SecretId:   cloudformation.Ref(DBSecretID),
		TargetId:   cloudformation.Ref(DBInstanceID),
		TargetType: "AWS::RDS::DBInstance",
	}); err != nil {
		return err
	}
	// The attachment resolves to the secret ARN once the connection fields are filled in.
	b.secretRef = cloudformation.Ref(DBSecretAttachmentID)
	return nil
}
