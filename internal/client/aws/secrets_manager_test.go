package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/cyphera-wallet/internal/logger"
)

func init() {
	logger.InitLogger("test")
}

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestGetSecretString(t *testing.T) {
	tests := []struct {
		name     string
		arn      string
		fallback string
		api      *fakeSecrets
		want     string
		wantErr  bool
	}{
		{
			name: "from secrets manager",
			arn:  "arn:alchemy",
			api:  &fakeSecrets{values: map[string]string{"arn:alchemy": "sm-key"}},
			want: "sm-key",
		},
		{
			name:     "fetch failure falls back",
			arn:      "arn:alchemy",
			fallback: "env-key",
			api:      &fakeSecrets{err: errors.New("AccessDenied")},
			want:     "env-key",
		},
		{
			name:     "no arn uses env",
			fallback: "env-key",
			api:      &fakeSecrets{},
			want:     "env-key",
		},
		{
			name:    "nothing configured",
			api:     &fakeSecrets{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SECRET_ARN", tt.arn)
			t.Setenv("TEST_SECRET", tt.fallback)

			got, err := NewSecretsManagerClientWithAPI(tt.api).GetSecretString(context.Background(), "TEST_SECRET_ARN", "TEST_SECRET")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
