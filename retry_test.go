package gopql

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func emptyRequest(ctx context.Context, method string, urlStr string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, urlStr, body)
}

type fakeResponseBody struct {
	body []byte
	cnt  int
}

func (b *fakeResponseBody) Read(p []byte) (n int, err error) {
	if b.cnt == 0 {
		copy(p, b.body)
		b.cnt = 1
		return len(b.body), nil
	}
	b.cnt = 0
	return 0, io.EOF
}

func (b *fakeResponseBody) Close() error {
	return nil
}

type fakeHTTPClient struct {
	t          *testing.T // for assertions
	cnt        int        // number of failed attempts before success
	success    bool       // return success after cnt attempts
	err        error      // returned instead of a response while failing
	body       []byte     // return body
	statusCode int        // status code while failing
	header     http.Header
	reqBodies  [][]byte
	urls       []*url.URL
	methods    []string
}

func (c *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(req.Body)
	assertNilF(c.t, err)
	c.reqBodies = append(c.reqBodies, buf.Bytes())
	u := *req.URL
	c.urls = append(c.urls, &u)
	c.methods = append(c.methods, req.Method)

	c.cnt--
	if c.cnt < 0 {
		c.cnt = 0
	}
	retcode := c.statusCode
	if c.success && c.cnt == 0 {
		retcode = http.StatusOK
	} else if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: retcode,
		Header:     c.header,
		Body:       &fakeResponseBody{body: c.body},
	}, nil
}

func fastWait() *waitAlgo {
	return newWaitAlgo(time.Millisecond, 5*time.Millisecond)
}

func retryTestURL(t *testing.T) *url.URL {
	u, err := url.Parse("https://ems.example.com/integration/api/v1/compute/dm/export/query?requestId=first")
	assertNilF(t, err)
	return u
}

func TestRetryReplacesRequestID(t *testing.T) {
	client := &fakeHTTPClient{t: t, cnt: 3, success: true, statusCode: http.StatusServiceUnavailable}
	res, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 5, fastWait()).execute()
	assertNilF(t, err)
	assertEqualE(t, res.StatusCode, http.StatusOK)
	assertEqualF(t, len(client.urls), 3)

	assertEqualE(t, client.urls[0].Query().Get(requestIDKey), "first")
	assertEqualE(t, client.urls[0].Query().Get(retryCountParam), "")
	seen := map[string]bool{}
	for i, u := range client.urls {
		id := u.Query().Get(requestIDKey)
		assertFalseE(t, seen[id], "request id reused")
		seen[id] = true
		if i > 0 {
			assertEqualE(t, u.Query().Get(retryCountParam), []string{"", "1", "2"}[i])
		}
	}
}

func TestRetryWithoutRequestIDKeepsURL(t *testing.T) {
	u, err := url.Parse("https://ems.example.com/integration/api/pools/p/data-models")
	assertNilF(t, err)
	client := &fakeHTTPClient{t: t, cnt: 2, success: true, statusCode: http.StatusTooManyRequests}
	_, err = newRetryHTTP(context.Background(), client, emptyRequest, u, nil, 3, fastWait()).execute()
	assertNilF(t, err)
	assertEqualE(t, client.urls[1].Query().Get(requestIDKey), "")
	assertEqualE(t, client.urls[1].Query().Get(retryCountParam), "1")
}

func TestRetryForcelist(t *testing.T) {
	testcases := []struct {
		status   int
		attempts int
	}{
		{status: http.StatusTooManyRequests, attempts: 3},
		{status: http.StatusBadGateway, attempts: 3},
		{status: http.StatusServiceUnavailable, attempts: 3},
		{status: http.StatusGatewayTimeout, attempts: 3},
		{status: http.StatusInternalServerError, attempts: 1},
		{status: http.StatusForbidden, attempts: 1},
		{status: http.StatusNotFound, attempts: 1},
	}
	for _, tc := range testcases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := &fakeHTTPClient{t: t, cnt: 10, statusCode: tc.status}
			res, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 2, fastWait()).execute()
			assertNilF(t, err)
			assertEqualE(t, res.StatusCode, tc.status, "the last response is returned")
			assertEqualE(t, len(client.urls), tc.attempts)
		})
	}
}

func TestRetryPostResendsBody(t *testing.T) {
	client := &fakeHTTPClient{t: t, cnt: 2, success: true, statusCode: http.StatusBadGateway}
	body := []byte(`{"dataCommand":{}}`)
	headers := map[string]string{"Content-Type": "application/json", "X-Test": "1"}
	_, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), headers, 3, fastWait()).
		doPost().setBody(body).execute()
	assertNilF(t, err)
	assertEqualF(t, len(client.reqBodies), 2)
	for i := range client.reqBodies {
		assertEqualE(t, string(client.reqBodies[i]), string(body))
		assertEqualE(t, client.methods[i], http.MethodPost)
	}
}

func TestRetryConnectionError(t *testing.T) {
	client := &fakeHTTPClient{t: t, cnt: 2, success: true, err: errors.New("connection reset by peer")}
	res, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 3, fastWait()).execute()
	assertNilF(t, err)
	assertEqualE(t, res.StatusCode, http.StatusOK)

	client = &fakeHTTPClient{t: t, cnt: 10, err: errors.New("connection reset by peer")}
	_, err = newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 1, fastWait()).execute()
	assertNotNilF(t, err)
	assertStringContainsE(t, err.Error(), "connection reset")
	assertEqualE(t, len(client.urls), 2)
}

func TestRetryStopsOnContextError(t *testing.T) {
	client := &fakeHTTPClient{t: t, cnt: 10, err: context.DeadlineExceeded}
	_, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 5, fastWait()).execute()
	assertErrIsE(t, err, context.DeadlineExceeded)
	assertEqualE(t, len(client.urls), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client = &fakeHTTPClient{t: t, cnt: 10, statusCode: http.StatusServiceUnavailable}
	_, err = newRetryHTTP(ctx, client, func(_ context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
		return http.NewRequest(method, urlStr, body)
	}, retryTestURL(t), nil, 5, fastWait()).execute()
	assertErrIsE(t, err, context.Canceled)
	assertEqualE(t, len(client.urls), 1)
}

func TestRetryAfterHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "1")
	client := &fakeHTTPClient{t: t, cnt: 2, success: true, statusCode: http.StatusTooManyRequests, header: header}
	wait := newWaitAlgo(time.Millisecond, 20*time.Millisecond)
	start := time.Now()
	_, err := newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 3, wait).execute()
	assertNilF(t, err)
	assertDurationBetweenE(t, time.Since(start), 0, 900*time.Millisecond, "Retry-After is capped by the max delay")

	d, ok := retryAfter(&http.Response{Header: header})
	assertTrueE(t, ok)
	assertEqualE(t, d, time.Second)
	_, ok = retryAfter(&http.Response{Header: http.Header{}})
	assertFalseE(t, ok)
	_, ok = retryAfter(nil)
	assertFalseE(t, ok)
}

func TestRetryUsesLimiter(t *testing.T) {
	client := &fakeHTTPClient{t: t, cnt: 1, success: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRetryHTTP(ctx, client, emptyRequest, retryTestURL(t), nil, 1, fastWait()).
		withLimiter(rate.NewLimiter(rate.Every(time.Hour), 0)).execute()
	assertErrIsE(t, err, context.Canceled)
	assertEqualE(t, len(client.urls), 0)

	_, err = newRetryHTTP(context.Background(), client, emptyRequest, retryTestURL(t), nil, 1, fastWait()).
		withLimiter(rate.NewLimiter(rate.Inf, 1)).execute()
	assertNilE(t, err)
}

func TestDecorrBounds(t *testing.T) {
	w := newWaitAlgo(10*time.Millisecond, 200*time.Millisecond)
	sleep := time.Duration(0)
	for attempt := 0; attempt < 50; attempt++ {
		sleep = w.decorr(attempt, sleep)
		assertDurationBetweenE(t, sleep, 10*time.Millisecond, 200*time.Millisecond)
	}
	assertDurationBetweenE(t, w.decorr(0, time.Hour), w.base, 3*w.base, "first attempt starts from base")
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 502, 503, 504} {
		assertTrueE(t, isRetryableStatus(code))
	}
	for _, code := range []int{200, 400, 401, 403, 404, 500} {
		assertFalseE(t, isRetryableStatus(code))
	}
}
