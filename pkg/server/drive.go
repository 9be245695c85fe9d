package server

import (
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/accounts"
	"github.com/marmos91/dittodrive/pkg/audit"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/quota"
	"github.com/marmos91/dittodrive/pkg/sharing"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// DriveOptions tunes the engines built by NewDrive.
type DriveOptions struct {
	DefaultQuota            int64
	NotifyOnUpload          bool
	MinSearchLength         int
	AccountDeletesPerSecond uint
	Metrics                 metrics.DriveMetrics
}

// Drive bundles the engines over one pair of stores. The engines are
// stateless, so a Drive is safe for concurrent use and cheap to share.
type Drive struct {
	Hierarchy     *hierarchy.Engine
	Sharing       *sharing.Ledger
	Access        *access.Resolver
	Quota         *quota.Ledger
	Notifications *notify.Service
	Audit         *audit.Logger
	Accounts      *accounts.Service
}

// NewDrive wires every engine to store and payloads.
func NewDrive(store metadata.MetadataStore, payloads content.ContentStore, opts DriveOptions) *Drive {
	return &Drive{
		Hierarchy: hierarchy.New(store, payloads, hierarchy.Config{
			NotifyOnUpload:  opts.NotifyOnUpload,
			MinSearchLength: opts.MinSearchLength,
			Metrics:         opts.Metrics,
		}),
		Sharing:       sharing.New(store),
		Access:        access.New(store),
		Quota:         quota.New(store),
		Notifications: notify.New(store),
		Audit:         audit.New(store),
		Accounts: accounts.New(store, payloads, accounts.Config{
			DefaultQuota:     opts.DefaultQuota,
			DeletesPerSecond: opts.AccountDeletesPerSecond,
		}),
	}
}
