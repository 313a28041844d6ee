// Where: internal/domain/stack/repository.go
// What: Image source, created as an ECR repository or looked up by name.
// Why: Step 3; the task specification pulls its image from here.
package stack

import (
	"fmt"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ecr"
	"github.com/poruru/efstack/internal/domain/cfn"
)

const registryHost = "${AWS::AccountId}.dkr.ecr.${AWS::Region}.${AWS::URLSuffix}"

func (b *builder) imageSource() error {
	name, tag := b.opts.Repository.Name, b.opts.Repository.Tag
	if !b.opts.Features.CreateRepository {
		b.imageURI = cloudformation.Sub(fmt.Sprintf("%s/%s", registryHost, name))
		b.image = cloudformation.Sub(fmt.Sprintf("%s/%s:%s", registryHost, name, tag))
		b.repositoryArn = cloudformation.Sub(fmt.Sprintf("arn:${AWS::Partition}:ecr:${AWS::Region}:${AWS::AccountId}:repository/%s", name))
		return nil
	}

	policy := b.deletionPolicy(cfn.DeletionPolicyRetain)
	repo := &ecr.Repository{
		RepositoryName: cloudformation.String(name),
		ImageScanningConfiguration: &ecr.Repository_ImageScanningConfiguration{
			ScanOnPush: cloudformation.Bool(true),
		},
		AWSCloudFormationDeletionPolicy:      policy,
		AWSCloudFormationUpdateReplacePolicy: replacePolicy(policy),
	}
	if policy == cfn.DeletionPolicyDelete {
		repo.EmptyOnDelete = cloudformation.Bool(true)
	}
	if err := b.tpl.Declare(RepositoryID, repo); err != nil {
		return err
	}
	b.imageURI = cloudformation.GetAtt(RepositoryID, "RepositoryUri")
	b.image = cloudformation.Join("", []string{cloudformation.GetAtt(RepositoryID, "RepositoryUri"), ":" + tag})
	b.repositoryArn = cloudformation.GetAtt(RepositoryID, "Arn")
	return nil
}
