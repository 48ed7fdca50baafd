// Command storaged runs the multi-tenant session/document storage engine,
// exposing its RPC surface over a gRPC listener.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"

	gstorage "cloud.google.com/go/storage"
	"github.com/Azure/azure-storage-blob-go/azblob"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/checkpoint"
	"github.com/NVIDIA/docx-mcp-storage/internal/config"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/index"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/azureblob"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/fs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/gcs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/memstore"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/s3"
	"github.com/NVIDIA/docx-mcp-storage/internal/rpc"
	"github.com/NVIDIA/docx-mcp-storage/internal/rpc/storagepb"
	"github.com/NVIDIA/docx-mcp-storage/internal/session"
	"github.com/NVIDIA/docx-mcp-storage/internal/sync/cloud"
	"github.com/NVIDIA/docx-mcp-storage/internal/sync/cloud/googledrive"
	"github.com/NVIDIA/docx-mcp-storage/internal/sync/cloud/msgraph"
	"github.com/NVIDIA/docx-mcp-storage/internal/sync/cloud/s3provider"
	"github.com/NVIDIA/docx-mcp-storage/internal/sync/local"
	"github.com/NVIDIA/docx-mcp-storage/internal/tokenbroker"
	"github.com/NVIDIA/docx-mcp-storage/internal/wal"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "storaged: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storaged",
	Short: "docx-mcp-storage storage engine",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage engine's RPC server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file overlay")
	rootCmd.AddCommand(serveCmd)
}

func newObjstore(cfg config.StorageConfig) (objstore.Store, error) {
	switch cfg.Backend {
	case "fs":
		return fs.New(cfg.FSRoot)
	case "memstore":
		return memstore.New(), nil
	case "s3":
		sess, err := awssession.NewSessionWithOptions(awssession.Options{SharedConfigState: awssession.SharedConfigEnable})
		if err != nil {
			return nil, fmt.Errorf("storaged: building aws session: %w", err)
		}
		return s3.New(sess, cfg.S3Bucket), nil
	case "gcs":
		client, err := gstorage.NewClient(context.Background())
		if err != nil {
			return nil, fmt.Errorf("storaged: building gcs client: %w", err)
		}
		return gcs.New(client, cfg.GCSBucket), nil
	case "azureblob":
		account := os.Getenv("AZURE_STORAGE_ACCOUNT")
		key := os.Getenv("AZURE_STORAGE_ACCESS_KEY")
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("storaged: building azure credential: %w", err)
		}
		pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
		u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", account, cfg.AzureContainer))
		if err != nil {
			return nil, fmt.Errorf("storaged: azure container url: %w", err)
		}
		return azureblob.New(azblob.NewContainerURL(*u, pipeline)), nil
	default:
		return nil, fmt.Errorf("storaged: unknown storage.backend %q", cfg.Backend)
	}
}

// cloudBackends wires every sync/cloud provider
// (googledrive, msgraph SharePoint/OneDrive, s3provider S3/R2) behind the
// same tokenbroker.Broker, so a connection registered against any of them
// is reachable through the router without per-provider RPC plumbing.
func cloudBackends(cat catalog.Client, broker *tokenbroker.Broker, pollSecs uint32) []*cloud.Backend {
	backends := []*cloud.Backend{
		cloud.New(googledrive.New(cat), broker, pollSecs),
		cloud.New(msgraph.NewSharePoint(cat), broker, pollSecs),
		cloud.New(msgraph.NewOneDrive(cat), broker, pollSecs),
		cloud.New(s3provider.NewS3(cat, "us-east-1"), broker, pollSecs),
	}
	if endpoint := os.Getenv("R2_ACCOUNT_ENDPOINT"); endpoint != "" {
		backends = append(backends, cloud.New(s3provider.NewR2(cat, endpoint), broker, pollSecs))
	}
	return backends
}

func oauthConfig(id config.IdentityConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     id.OAuthClientID,
		ClientSecret: id.OAuthClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: id.OAuthTokenURL},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return err
	}

	store, err := newObjstore(cfg.Storage)
	if err != nil {
		return err
	}

	idx := index.New(store)
	w := wal.New(store)
	ckpt := checkpoint.New(store, cfg.Storage.CkptSuffix)
	sess := session.New(store, cfg.Storage.DocSuffix, idx, w, ckpt)

	localBackend, err := local.New()
	if err != nil {
		return fmt.Errorf("storaged: building local sync backend: %w", err)
	}

	var router *rpc.Router
	if cfg.Identity.CatalogURL != "" {
		if err := cfg.Identity.Validate(); err != nil {
			return err
		}
		cat := catalog.NewHTTPClient(cfg.Identity.CatalogURL, cfg.Identity.CatalogAPIToken)
		broker := tokenbroker.New(cat, oauthConfig(cfg.Identity))
		var backends []rpc.BrowseBackend
		for _, b := range cloudBackends(cat, broker, cfg.Storage.WatchPollIntervalSecs) {
			backends = append(backends, b)
		}
		router = rpc.NewRouter(localBackend, cat, backends...)
	} else {
		glog.Warningf("storaged: identity.catalog_url not configured, cloud sync backends disabled")
		router = rpc.NewRouter(localBackend, nil)
	}

	srv := rpc.NewServer(sess, idx, w, ckpt, router, cfg.Storage.Version)

	lis, err := net.Listen("tcp", cfg.Storage.Addr())
	if err != nil {
		return fmt.Errorf("storaged: listening on %s: %w", cfg.Storage.Addr(), err)
	}

	gs := grpc.NewServer(rpc.ServerOption())
	storagepb.RegisterStorageServer(gs, srv)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := "127.0.0.1:9091"
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			glog.Errorf("storaged: metrics server error: %v", err)
		}
	}()

	glog.Infof("storaged: listening on %s (backend=%s)", cfg.Storage.Addr(), cfg.Storage.Backend)
	return gs.Serve(lis)
}
