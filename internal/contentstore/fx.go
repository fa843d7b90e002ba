package contentstore

import (
	"context"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/claimsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("contentstore",
	fx.Provide(New),
)

// New builds the content store selected by content_store.provider.
func New(cfg config.Config, log *zap.Logger) (ContentStore, error) {
	storeCfg := cfg.ContentStore
	log = log.Named("contentstore")

	switch storeCfg.Provider {
	case config.ContentStoreS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(storeCfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if storeCfg.S3Endpoint != "" {
				o.BaseEndpoint = &storeCfg.S3Endpoint
				o.UsePathStyle = true
			}
		})
		log.Info("using s3 content store", zap.String("bucket", storeCfg.S3Bucket))
		return NewS3Store(client, storeCfg.S3Bucket, storeCfg.S3Prefix), nil
	case config.ContentStoreHTTP:
		log.Info("using http content store", zap.String("endpoint", storeCfg.HTTPEndpoint))
		return NewHTTPStore(&http.Client{Timeout: storeCfg.Timeout}, storeCfg.HTTPEndpoint, storeCfg.AdminEmail, storeCfg.SpaceDID), nil
	default:
		log.Info("content store disabled")
		return Noop{}, nil
	}
}
