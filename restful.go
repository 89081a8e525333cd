// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	internalos "github.com/pqlclient/gopql/internal/os"
)

const (
	headerAuthorization = "Authorization"
	headerUserAgent     = "User-Agent"
	headerAccept        = "Accept"
	headerContentType   = "Content-Type"
	headerCSRFToken     = "X-CSRF-Token"
	xsrfCookieName      = "XSRF-TOKEN"

	headerContentTypeApplicationJSON = "application/json"

	exportQueryPath     = "/integration/api/v1/compute/%s/export/query"
	exportStatusPath    = "/integration/api/v1/compute/%s/export/%s"
	exportChunkPath     = "/integration/api/v1/compute/%s/export/%s/%d/result"
	exportResultPath    = "/integration/api/v1/compute/%s/export/%s/result"
	dataModelsPath      = "/integration/api/pools/%s/data-models"
	dataModelTablesPath = "/integration/api/pools/%s/data-model/%s/tables"
)

// Export job states reported by EMS.
const (
	exportRunning = "RUNNING"
	exportDone    = "DONE"
	exportFailed  = "FAILED"
	exportExpired = "EXPIRED"
)

const exportTypeParquet = "PARQUET"

type exportQueryRequest struct {
	DataCommand exportDataCommand `json:"dataCommand"`
	ExportType  string            `json:"exportType"`
}

type exportDataCommand struct {
	Commands []exportDataQuery `json:"commands"`
}

type exportDataQuery struct {
	Queries []string `json:"queries"`
}

type exportStatusResponse struct {
	ID           string `json:"id"`
	ExportStatus string `json:"exportStatus"`
	Message      string `json:"message"`
	ExportType   string `json:"exportType"`
	ExportChunks int    `json:"exportChunks"`
}

type dataModelColumnResponse struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primaryKey"`
}

type dataModelTableResponse struct {
	ID      string                    `json:"id"`
	Name    string                    `json:"name"`
	Alias   string                    `json:"alias"`
	Columns []dataModelColumnResponse `json:"columns"`
}

// DataModel is an entry of a pool's data model listing.
type DataModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PoolID      string `json:"poolId"`
}

// restClient is the HTTP Transport against the EMS data export API. One
// query becomes one export job; every exported chunk is one page.
type restClient struct {
	baseURL      *url.URL
	client       *http.Client
	auth         authenticator
	userAgent    string
	maxRetries   int
	wait         *waitAlgo
	limiter      *rate.Limiter
	pollInterval time.Duration
	mem          memory.Allocator
}

func newRestClient(cfg *Config) (*restClient, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "BaseURL", cfg.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	rt, err := createRoundTripper(cfg)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   cfg.RequestTimeout,
	}
	auth, err := newAuthenticator(cfg, client)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &restClient{
		baseURL:      baseURL,
		client:       client,
		auth:         auth,
		userAgent:    fmt.Sprintf("%s (%s)", cfg.UserAgent, internalos.Platform()),
		maxRetries:   cfg.MaxRetries,
		wait:         newWaitAlgo(cfg.RetryDelay, cfg.MaxRetryDelay),
		limiter:      limiter,
		pollInterval: cfg.PollInterval,
		mem:          memory.DefaultAllocator,
	}, nil
}

func (sr *restClient) fullURL(path string) *url.URL {
	u := *sr.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{requestIDKey: []string{uuid.NewString()}}.Encode()
	return &u
}

func (sr *restClient) headers(ctx context.Context, body bool) (map[string]string, error) {
	authHeader, err := sr.auth.authorizationHeader(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		headerAuthorization: authHeader,
		headerUserAgent:     sr.userAgent,
		headerAccept:        headerContentTypeApplicationJSON + ", */*",
	}
	if body {
		headers[headerContentType] = headerContentTypeApplicationJSON
	}
	for _, c := range sr.client.Jar.Cookies(sr.baseURL) {
		if c.Name == xsrfCookieName {
			headers[headerCSRFToken] = c.Value
		}
	}
	return headers, nil
}

// call sends one request with retries and returns the response payload of a
// 2xx response. A rejected credential is dropped and the request is sent once
// more with a fresh one.
func (sr *restClient) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		headers, err := sr.headers(ctx, body != nil)
		if err != nil {
			return nil, err
		}
		fullURL := sr.fullURL(path)
		logger.WithContext(ctx).Debugf("%v %v", method, fullURL.Path)
		r := newRetryHTTP(ctx, sr.client, http.NewRequestWithContext, fullURL, headers, sr.maxRetries, sr.wait).
			withLimiter(sr.limiter)
		if method == http.MethodPost {
			r = r.doPost().setBody(body)
		}
		res, err := r.execute()
		if err != nil {
			return nil, normalizeError(err)
		}
		payload, err := io.ReadAll(res.Body)
		closeBody(res)
		if err != nil {
			return nil, normalizeError(err)
		}
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return payload, nil
		}
		if res.StatusCode == http.StatusUnauthorized && attempt == 0 {
			if _, static := sr.auth.(*staticTokenAuth); !static {
				logger.WithContext(ctx).Info("credential rejected, requesting a new one")
				sr.auth.invalidate()
				continue
			}
		}
		logger.WithContext(ctx).Debugf("%v %v failed with status %v: %v", method, path, res.StatusCode, maskSecrets(string(payload)))
		return nil, responseError(res.StatusCode, string(payload), path)
	}
}

func (sr *restClient) getJSON(ctx context.Context, path string, v interface{}) error {
	payload, err := sr.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeJSONResponse(payload, v)
}

func (sr *restClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	payload, err := sr.call(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return decodeJSONResponse(payload, out)
}

func decodeJSONResponse(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &QueryError{
			Number:  ErrCodeTransportFailure,
			Kind:    RemoteQuery,
			Payload: string(payload),
			Message: errMsgTransportFailure,
			Err:     err,
		}
	}
	return nil
}

// responseError maps a non-success status onto a RemoteQuery error. The
// payload is kept verbatim.
func responseError(statusCode int, payload, resource string) *QueryError {
	qe := NewRemoteQueryError(statusCode, payload)
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		qe.Number = ErrCodePermissionDenied
		qe.Message = errMsgPermissionDenied
		qe.MessageArgs = []interface{}{resource}
	case http.StatusNotFound:
		qe.Number = ErrCodeNotFound
		qe.Message = errMsgNotFound
		qe.MessageArgs = []interface{}{resource}
	}
	return qe
}

// Send implements Transport. The first page submits an export job and waits
// for it; later pages download the remaining chunks of that job. PageSize is
// ignored since EMS decides the chunking.
func (sr *restClient) Send(ctx context.Context, q CompiledQuery, p Pagination) (*Page, error) {
	dataModelID := q.DataModelID()
	if dataModelID == "" {
		return nil, newConfigurationError(ErrCodeMissingDataModel, errMsgMissingDataModel)
	}
	var exportID string
	var index, count int
	if p.PageToken == "" {
		status, err := sr.runExport(ctx, dataModelID, q.Text())
		if err != nil {
			return nil, err
		}
		exportID, count = status.ID, status.ExportChunks
	} else {
		var err error
		if exportID, index, count, err = parsePageToken(p.PageToken); err != nil {
			return nil, err
		}
	}
	return sr.fetchPage(ctx, dataModelID, exportID, index, count)
}

func (sr *restClient) runExport(ctx context.Context, dataModelID, text string) (*exportStatusResponse, error) {
	req := exportQueryRequest{
		DataCommand: exportDataCommand{Commands: []exportDataQuery{{Queries: []string{text}}}},
		ExportType:  exportTypeParquet,
	}
	var submitted exportStatusResponse
	if err := sr.postJSON(ctx, fmt.Sprintf(exportQueryPath, url.PathEscape(dataModelID)), req, &submitted); err != nil {
		return nil, err
	}
	if submitted.ID == "" {
		return nil, &QueryError{
			Number:  ErrCodeTransportFailure,
			Kind:    RemoteQuery,
			Message: errMsgTransportFailure,
			Err:     fmt.Errorf("export response has no id"),
		}
	}
	logger.WithContext(ctx).Infof("export %v submitted", submitted.ID)
	return sr.waitForExport(ctx, dataModelID, submitted.ID)
}

// waitForExport polls the export status every pollInterval until it leaves RUNNING.
func (sr *restClient) waitForExport(ctx context.Context, dataModelID, exportID string) (*exportStatusResponse, error) {
	path := fmt.Sprintf(exportStatusPath, url.PathEscape(dataModelID), url.PathEscape(exportID))
	for {
		var status exportStatusResponse
		if err := sr.getJSON(ctx, path, &status); err != nil {
			return nil, err
		}
		switch status.ExportStatus {
		case exportDone:
			logger.WithContext(ctx).Infof("export %v done with %v chunks", exportID, status.ExportChunks)
			if status.ID == "" {
				status.ID = exportID
			}
			return &status, nil
		case exportRunning, "":
			logger.WithContext(ctx).Debugf("export %v still running", exportID)
		default:
			return nil, &QueryError{
				Number:      ErrCodeExportFailed,
				Kind:        RemoteQuery,
				Payload:     status.Message,
				Message:     errMsgExportFailed,
				MessageArgs: []interface{}{exportID, status.ExportStatus, status.Message},
			}
		}
		await := time.NewTimer(sr.pollInterval)
		select {
		case <-await.C:
		case <-ctx.Done():
			await.Stop()
			return nil, contextError(ctx.Err())
		}
	}
}

// fetchPage downloads chunk index of an export with count chunks. An export
// without chunks has a single result.
func (sr *restClient) fetchPage(ctx context.Context, dataModelID, exportID string, index, count int) (*Page, error) {
	var path string
	if count > 0 {
		path = fmt.Sprintf(exportChunkPath, url.PathEscape(dataModelID), url.PathEscape(exportID), index)
	} else {
		path = fmt.Sprintf(exportResultPath, url.PathEscape(dataModelID), url.PathEscape(exportID))
	}
	payload, err := sr.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	columns, rows, err := decodeResultChunk(ctx, payload, sr.mem)
	if err != nil {
		return nil, err
	}
	page := &Page{Columns: columns, Rows: rows}
	if index+1 < count {
		page.NextPageToken = makePageToken(exportID, index+1, count)
	}
	return page, nil
}

func makePageToken(exportID string, index, count int) string {
	return fmt.Sprintf("%s/%d/%d", exportID, index, count)
}

func parsePageToken(token string) (exportID string, index, count int, err error) {
	parts := strings.Split(token, "/")
	invalid := &QueryError{
		Number:      ErrCodeInvalidPageToken,
		Kind:        RemoteQuery,
		Message:     errMsgInvalidPageToken,
		MessageArgs: []interface{}{token},
	}
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, invalid
	}
	if index, err = strconv.Atoi(parts[1]); err != nil {
		return "", 0, 0, invalid
	}
	if count, err = strconv.Atoi(parts[2]); err != nil {
		return "", 0, 0, invalid
	}
	if index < 0 || index >= count {
		return "", 0, 0, invalid
	}
	return parts[0], index, count, nil
}

func (sr *restClient) dataModelTables(ctx context.Context, poolID, dataModelID string) ([]Table, error) {
	var resp []dataModelTableResponse
	path := fmt.Sprintf(dataModelTablesPath, url.PathEscape(poolID), url.PathEscape(dataModelID))
	if err := sr.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	tables := make([]Table, len(resp))
	for i, t := range resp {
		columns := make([]Column, len(t.Columns))
		for j, c := range t.Columns {
			columns[j] = Column{Name: c.Name, Type: ParseColumnType(c.Type)}
		}
		tables[i] = Table{Name: t.Name, Alias: t.Alias, Columns: columns}
	}
	return tables, nil
}

func (sr *restClient) dataModels(ctx context.Context, poolID string) ([]DataModel, error) {
	var resp []DataModel
	if err := sr.getJSON(ctx, fmt.Sprintf(dataModelsPath, url.PathEscape(poolID)), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
