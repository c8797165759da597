// Package objectstore creates, inspects and removes per-workspace storage
// containers. Two backends are provided: Swift (via the goose HTTP client)
// and S3-compatible stores (via aws-sdk-go-v2).
package objectstore

import (
	"context"
	"strconv"
	"strings"
)

// MetaQuotaBytes is the metadata key carrying a container's byte limit.
const MetaQuotaBytes = "x-container-meta-quota-bytes"

// Metadata keys exposed for ACLs.
const (
	MetaRead  = "x-container-read"
	MetaWrite = "x-container-write"
)

// ACL lists the grantees allowed to read and write a container, in the
// "tenant:account" form.
type ACL struct {
	Read  string
	Write string
}

// AccountACL grants read and write on a container to a single account.
func AccountACL(tenant, account string) ACL {
	grantee := tenant + ":" + account
	return ACL{Read: grantee, Write: grantee}
}

// Metadata is the container metadata with lowercase keys.
type Metadata map[string]string

// QuotaBytes returns the container byte limit, or 0 when the attribute is
// absent or unparsable.
func (m Metadata) QuotaBytes() int64 {
	v, ok := m[MetaQuotaBytes]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Client is the storage contract used by the provisioning manager.
//
// token authorises the call and baseURL is the storage account endpoint.
// Errors wrap common.ErrorStorage for network, auth and server failures,
// common.ErrorConflict when the container name is taken by someone else,
// and common.ErrorNotFound when the container does not exist.
// DeleteContainer succeeds when the container is already absent.
type Client interface {
	CreateContainer(ctx context.Context, token, baseURL, container string, acl ACL) error
	// SetQuota sets the byte limit. Callers skip it for a zero limit.
	SetQuota(ctx context.Context, token, baseURL, container string, quotaBytes int64) error
	GetMetadata(ctx context.Context, token, baseURL, container string) (Metadata, error)
	DeleteContainer(ctx context.Context, token, baseURL, container string) error
}
