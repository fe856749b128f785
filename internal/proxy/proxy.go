// Package proxy forwards gated requests to the upstream data providers.
// Provider internals (market, news, DeFi feeds) are not this service's
// concern; by the time a request reaches the proxy, access is settled.
package proxy

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

type Proxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

func New(targetURL string) (*Proxy, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("upstream %s failed: %v", target.Host, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream unavailable"}`))
	}

	return &Proxy{target: target, proxy: rp}, nil
}

func (p *Proxy) Handle(c *gin.Context) {
	p.proxy.ServeHTTP(c.Writer, c.Request)
}

func (p *Proxy) Target() string {
	return p.target.String()
}
