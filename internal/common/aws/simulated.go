// internal/common/aws/simulated.go
package aws

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SimulationProvider is the provider name recorded on records dispatched
// through the simulated clients.
const SimulationProvider = "simulation"

// SimulatedSES stands in for SES when no provider credentials are
// configured. Every send succeeds with a sequential message id, so
// unconfigured environments keep working end to end.
type SimulatedSES struct {
	seq atomic.Int64
}

func NewSimulatedSES() *SimulatedSES {
	return &SimulatedSES{}
}

func (s *SimulatedSES) SendEmail(_ context.Context, _ *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	id := fmt.Sprintf("sim-email-%06d", s.seq.Add(1))
	return &ses.SendEmailOutput{MessageId: aws.String(id)}, nil
}

// SimulatedSNS stands in for SNS for the sms and push transports.
type SimulatedSNS struct {
	seq atomic.Int64
}

func NewSimulatedSNS() *SimulatedSNS {
	return &SimulatedSNS{}
}

func (s *SimulatedSNS) Publish(_ context.Context, _ *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	id := fmt.Sprintf("sim-sns-%06d", s.seq.Add(1))
	return &sns.PublishOutput{MessageId: aws.String(id)}, nil
}

func (s *SimulatedSNS) CreatePlatformEndpoint(_ context.Context, params *sns.CreatePlatformEndpointInput, _ ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	token := ""
	if params.Token != nil {
		token = *params.Token
	}
	arn := fmt.Sprintf("arn:aws:sns:simulated:endpoint/%s", token)
	return &sns.CreatePlatformEndpointOutput{EndpointArn: aws.String(arn)}, nil
}

func (s *SimulatedSNS) Subscribe(_ context.Context, params *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	topic := ""
	if params.TopicArn != nil {
		topic = *params.TopicArn
	}
	arn := fmt.Sprintf("%s:sub-%06d", topic, s.seq.Add(1))
	return &sns.SubscribeOutput{SubscriptionArn: aws.String(arn)}, nil
}

func (s *SimulatedSNS) Unsubscribe(_ context.Context, _ *sns.UnsubscribeInput, _ ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	return &sns.UnsubscribeOutput{}, nil
}
