package gateway

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultMaxIdleConns          = 100
	DefaultDialTimeout           = 30 * time.Second
	DefaultKeepalive             = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = time.Second
	DefaultResponseHeaderTimeout = 60 * time.Second
	DefaultIdleConnsPerHost      = 64
	DefaultIdleConnTimeout       = 90 * time.Second
)

// newTransport tunes the upstream transport for a small set of long-lived
// hosts. Generation responses can be slow, hence the generous response
// header timeout.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepalive,
		}).DialContext,
		MaxIdleConns:          DefaultMaxIdleConns,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ExpectContinueTimeout: DefaultExpectContinueTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConnsPerHost:   DefaultIdleConnsPerHost,
	}
}

type bytesPool struct{ pool sync.Pool }

const sz = 32 * 1024

func newPool() *bytesPool {
	return &bytesPool{
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, sz)
				return &b
			},
		},
	}
}

func (p *bytesPool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

func (p *bytesPool) Put(b []byte) {
	p.pool.Put(&b)
}
