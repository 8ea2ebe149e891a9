package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL       = "https://api.hh.ru"
	mineResumeID = "mine"
	userAgent    = "spigell/hh-toucher (spigelly@gmail.com)"

	defaultTimeout = 10 * time.Second
)

// Options tunes the client. Zero values fall back to the production API.
type Options struct {
	APIURL    string
	UserAgent string
	Timeout   time.Duration
	// Transport is mostly useful in tests. Every client gets its own transport
	// otherwise so sessions are never shared between tokens.
	Transport http.RoundTripper
}

// Me is the account identity returned by GET /me.
type Me struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Client talks to the HeadHunter API on behalf of a single token.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string

	me        *Me
	closeOnce sync.Once
}

// New creates a client for the token and checks it with GET /me.
// An invalid or revoked token results in *AuthError and no open session.
func New(ctx context.Context, logger *zap.Logger, token string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		token:  token,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		UserAgent: userAgent,
		APIURL:    apiURL,
	}

	if opts.APIURL != "" {
		c.APIURL = strings.TrimRight(opts.APIURL, "/")
	}

	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}

	me, err := c.getMe(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.me = me

	return c, nil
}

// Me returns the identity fetched during construction.
func (c *Client) Me() Me {
	if c.me == nil {
		return Me{}
	}
	return *c.me
}

// Close releases the client's session. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.HTTPClient.CloseIdleConnections()
	})
}

func (c *Client) getMe(ctx context.Context) (*Me, error) {
	var me Me
	apiURLMe := fmt.Sprintf("%s/me", c.APIURL)

	if err := c.getJSON(ctx, apiURLMe, nil, &me); err != nil {
		return nil, err
	}

	return &me, nil
}
