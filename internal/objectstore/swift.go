package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/logging"
	"github.com/dmitrijs2005/stacksync/internal/netx"
	gooseerrors "github.com/go-goose/goose/v5/errors"
	goosehttp "github.com/go-goose/goose/v5/http"
)

// requestFunc issues one raw Swift request.
type requestFunc func(method, url, token string, rd *goosehttp.RequestData) error

// Swift talks to a Swift proxy with plain authenticated HTTP requests.
type Swift struct {
	do      requestFunc
	timeout time.Duration
	logger  logging.Logger
}

// NewSwift returns a Swift client. timeout bounds every request; zero means
// no bound beyond ctx.
func NewSwift(timeout time.Duration, logger logging.Logger) *Swift {
	hc := goosehttp.New()
	return &Swift{
		do: func(method, url, token string, rd *goosehttp.RequestData) error {
			return hc.BinaryRequest(method, url, token, rd, nil)
		},
		timeout: timeout,
		logger:  logger.With("module", "swift"),
	}
}

func (s *Swift) CreateContainer(ctx context.Context, token, baseURL, container string, acl ACL) error {
	hdr := http.Header{}
	if acl.Read != "" {
		hdr.Set("X-Container-Read", acl.Read)
	}
	if acl.Write != "" {
		hdr.Set("X-Container-Write", acl.Write)
	}

	// Swift answers 202 to a PUT on an existing container and applies the
	// headers to it, so only 201 counts as created.
	rd := &goosehttp.RequestData{ReqHeaders: hdr, ExpectedStatus: []int{http.StatusCreated}}
	err := s.send(ctx, http.MethodPut, token, baseURL, container, rd)
	if hasStatus(err, http.StatusAccepted) {
		return fmt.Errorf("%w: container %q already exists", common.ErrorConflict, container)
	}
	if err != nil {
		return fmt.Errorf("creating container %q: %w", container, err)
	}
	return nil
}

func (s *Swift) SetQuota(ctx context.Context, token, baseURL, container string, quotaBytes int64) error {
	if quotaBytes < 0 {
		return fmt.Errorf("%w: negative quota %d", common.ErrorInvalidArgument, quotaBytes)
	}

	hdr := http.Header{}
	hdr.Set("X-Container-Meta-Quota-Bytes", strconv.FormatInt(quotaBytes, 10))

	rd := &goosehttp.RequestData{ReqHeaders: hdr, ExpectedStatus: []int{http.StatusNoContent, http.StatusAccepted}}
	if err := s.send(ctx, http.MethodPost, token, baseURL, container, rd); err != nil {
		return fmt.Errorf("setting quota on %q: %w", container, err)
	}
	return nil
}

func (s *Swift) GetMetadata(ctx context.Context, token, baseURL, container string) (Metadata, error) {
	rd := &goosehttp.RequestData{ExpectedStatus: []int{http.StatusOK, http.StatusNoContent}}
	if err := s.send(ctx, http.MethodHead, token, baseURL, container, rd); err != nil {
		return nil, fmt.Errorf("reading metadata of %q: %w", container, err)
	}

	md := Metadata{}
	for k, v := range rd.RespHeaders {
		if len(v) > 0 {
			md[strings.ToLower(k)] = v[0]
		}
	}
	return md, nil
}

func (s *Swift) DeleteContainer(ctx context.Context, token, baseURL, container string) error {
	rd := &goosehttp.RequestData{ExpectedStatus: []int{http.StatusNoContent}}
	err := s.send(ctx, http.MethodDelete, token, baseURL, container, rd)
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Debug(ctx, "container already absent", "container", container)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting container %q: %w", container, err)
	}
	return nil
}

func (s *Swift) send(ctx context.Context, method, token, baseURL, container string, rd *goosehttp.RequestData) error {
	if container == "" {
		return fmt.Errorf("%w: empty container name", common.ErrorInvalidArgument)
	}
	target := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(container)

	start := time.Now()
	err := netx.Call(ctx, s.timeout, func() error {
		err := s.do(method, target, token, rd)
		if rd.RespReader != nil {
			rd.RespReader.Close()
		}
		return err
	})
	s.logger.Debug(ctx, "swift call", "method", method, "container", container, "elapsed", time.Since(start), "error", err)

	return classifyStorage(err)
}

// classifyStorage maps goose and context errors onto the common sentinels.
// Everything that is neither a missing nor a taken container is a
// storage error.
func classifyStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case gooseerrors.IsNotFound(err) || hasStatus(err, http.StatusNotFound):
		return fmt.Errorf("%w: %v", common.ErrorNotFound, err)
	case gooseerrors.IsDuplicateValue(err) || hasStatus(err, http.StatusConflict):
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
}

func hasStatus(err error, code int) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), fmt.Sprintf("status: %d", code))
}
