// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// requestIDKey is attached to every request against EMS
const requestIDKey string = "requestId"

// retryCountParam is attached to a request from the second attempt on
const retryCountParam string = "retryCount"

var retryStatusForcelist = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

func isRetryableStatus(code int) bool {
	return retryStatusForcelist[code]
}

// requestIDReplacer swaps the requestId query parameter for a fresh uuid.
// URLs without one are returned unchanged.
type requestIDReplacer struct {
	urlPtr *url.URL
}

func (r *requestIDReplacer) replace() *url.URL {
	vs, err := url.ParseQuery(r.urlPtr.RawQuery)
	if err != nil || vs.Get(requestIDKey) == "" {
		return r.urlPtr
	}
	vs.Set(requestIDKey, uuid.NewString())
	r.urlPtr.RawQuery = vs.Encode()
	return r.urlPtr
}

type retryUpdate struct {
	targetURL *url.URL
}

func (r *retryUpdate) replaceOrAdd(retry int) *url.URL {
	vs, err := url.ParseQuery(r.targetURL.RawQuery)
	if err != nil {
		return r.targetURL
	}
	vs.Set(retryCountParam, strconv.Itoa(retry))
	r.targetURL.RawQuery = vs.Encode()
	return r.targetURL
}

type waitAlgo struct {
	mutex  *sync.Mutex // required for random.Int63n
	random *rand.Rand
	base   time.Duration // base wait time
	cap    time.Duration // maximum wait time
}

func newWaitAlgo(base, cap time.Duration) *waitAlgo {
	return &waitAlgo{
		mutex:  &sync.Mutex{},
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		base:   base,
		cap:    cap,
	}
}

func (w *waitAlgo) randDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(w.random.Int63n(int64(n)))
}

// decorrelated jitter backoff
func (w *waitAlgo) decorr(attempt int, sleep time.Duration) time.Duration {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if attempt == 0 || sleep < w.base {
		sleep = w.base
	}
	t := 3*sleep - w.base
	switch {
	case t > 0:
		return durationMin(w.cap, w.randDuration(t)+w.base)
	case t < 0:
		return durationMin(w.cap, w.randDuration(-t)+3*sleep)
	}
	return w.base
}

func durationMin(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(res *http.Response) (time.Duration, bool) {
	if res == nil {
		return 0, false
	}
	s, err := strconv.Atoi(res.Header.Get("Retry-After"))
	if err != nil || s < 0 {
		return 0, false
	}
	return time.Duration(s) * time.Second, true
}

type requestFunc func(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error)

type clientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

type retryHTTP struct {
	ctx        context.Context
	client     clientInterface
	req        requestFunc
	method     string
	fullURL    *url.URL
	headers    map[string]string
	body       []byte
	maxRetries int
	wait       *waitAlgo
	limiter    *rate.Limiter
}

func newRetryHTTP(ctx context.Context,
	client clientInterface,
	req requestFunc,
	fullURL *url.URL,
	headers map[string]string,
	maxRetries int,
	wait *waitAlgo) *retryHTTP {
	return &retryHTTP{
		ctx:        ctx,
		client:     client,
		req:        req,
		method:     http.MethodGet,
		fullURL:    fullURL,
		headers:    headers,
		maxRetries: maxRetries,
		wait:       wait,
	}
}

func (r *retryHTTP) doPost() *retryHTTP {
	r.method = http.MethodPost
	return r
}

func (r *retryHTTP) setBody(body []byte) *retryHTTP {
	r.body = body
	return r
}

func (r *retryHTTP) withLimiter(l *rate.Limiter) *retryHTTP {
	r.limiter = l
	return r
}

// execute sends the request until it gets a response outside the status
// forcelist or runs out of retries. The last response is returned as is,
// so the caller maps non-success statuses. Context cancellation stops the
// loop immediately.
func (r *retryHTTP) execute() (*http.Response, error) {
	retryCounter := 0
	sleepTime := time.Duration(0)
	rIDReplacer := &requestIDReplacer{r.fullURL}
	rUpdater := &retryUpdate{r.fullURL}

	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(r.ctx); err != nil {
				if ctxErr := r.ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, err
			}
		}
		req, err := r.req(r.ctx, r.method, r.fullURL.String(), bytes.NewReader(r.body))
		if err != nil {
			return nil, err
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
		res, err := r.client.Do(req)
		if err == nil && !isRetryableStatus(res.StatusCode) {
			return res, nil
		}

		// context cancel or timeout
		if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return nil, err
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			closeBody(res)
			return nil, ctxErr
		}
		if retryCounter >= r.maxRetries {
			if err != nil {
				return nil, err
			}
			logger.WithContext(r.ctx).Warnf("request for %v failed with status %v, no retries left", r.fullURL.Path, res.StatusCode)
			return res, nil
		}

		if err != nil {
			logger.WithContext(r.ctx).Warnf("failed http connection. no response is returned. err: %v. retrying...", err)
		} else {
			logger.WithContext(r.ctx).Warnf("request for %v failed with status %v. retrying...", r.fullURL.Path, res.StatusCode)
		}
		sleepTime = r.wait.decorr(retryCounter, sleepTime)
		if d, ok := retryAfter(res); ok && d > sleepTime {
			sleepTime = durationMin(d, r.wait.cap)
		}
		closeBody(res)

		retryCounter++
		r.fullURL = rIDReplacer.replace()
		r.fullURL = rUpdater.replaceOrAdd(retryCounter)
		logger.WithContext(r.ctx).Debugf("sleeping %v before retry %v", sleepTime, retryCounter)

		await := time.NewTimer(sleepTime)
		select {
		case <-await.C:
			// retry the request
		case <-r.ctx.Done():
			await.Stop()
			return nil, r.ctx.Err()
		}
	}
}

func closeBody(res *http.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	if err := res.Body.Close(); err != nil {
		logger.Debugf("failed to close response body. %v", err)
	}
}
