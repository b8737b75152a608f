package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"time"

	"remnantsync/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

var (
	ErrLoginFailed        = errors.New("failed to login to moraware")
	ErrNoFilesTable       = model.ErrNoFilesTable
	ErrPagerNotFollowable = errors.New("job list next control cannot be followed")
)

type Client struct {
	ListURL *url.URL
	SiteURL *url.URL
	Http    *resty.Client

	username  string
	password  string
	pageDelay time.Duration
}

type ClientOptions struct {
	// ListURL is the job list the crawl starts from; it also serves the
	// login form when the session is anonymous.
	ListURL   string
	// SiteURL is the origin root-relative file links point at. Optional.
	SiteURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	PageDelay time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	listURL, err := url.Parse(opts.ListURL)
	if err != nil {
		return nil, fmt.Errorf("invalid job list url: %w", err)
	}
	if listURL.Scheme == "" || listURL.Host == "" {
		return nil, fmt.Errorf("job list url %q is not absolute", opts.ListURL)
	}

	var siteURL *url.URL
	hosts := []string{listURL.Hostname()}
	if opts.SiteURL != "" {
		siteURL, err = url.Parse(opts.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("invalid site url: %w", err)
		}
		if siteURL.Hostname() != listURL.Hostname() {
			hosts = append(hosts, siteURL.Hostname())
		}
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(hosts...))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &Client{
		ListURL:   listURL,
		SiteURL:   siteURL,
		Http:      client,
		username:  opts.Username,
		password:  opts.Password,
		pageDelay: opts.PageDelay,
	}, nil
}

// getDocument fetches a page with the session cookies and parses it. It
// returns the final url after redirects.
func (c *Client) getDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	if res.IsError() {
		return nil, nil, fmt.Errorf("status %d for %s", res.StatusCode(), pageURL)
	}
	return parseResponse(res)
}

func parseResponse(res *resty.Response) (*goquery.Document, *url.URL, error) {
	final := finalURL(res)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse html from %s: %w", final, err)
	}
	return doc, final, nil
}

func finalURL(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	u, _ := url.Parse(res.Request.URL)
	return u
}

// Login submits the login form served at the job list url.
func (c *Client) Login(ctx context.Context) error {
	doc, pageURL, err := c.getDocument(ctx, c.ListURL.String())
	if err != nil {
		return err
	}

	form, ok := parseLoginForm(doc, pageURL)
	if !ok {
		if isLoggedIn(doc, pageURL) {
			slog.InfoContext(ctx, "moraware session already authenticated")
			return nil
		}
		return fmt.Errorf("%w: login form not found", ErrLoginFailed)
	}
	form.Fields[form.UserField] = c.username
	form.Fields[form.PassField] = c.password

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form.Fields).
		Post(form.Action)
	if err != nil {
		return fmt.Errorf("failed to make login request: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, res.StatusCode())
	}
	doc, pageURL, err = parseResponse(res)
	if err != nil {
		return err
	}
	if !isLoggedIn(doc, pageURL) {
		return ErrLoginFailed
	}

	slog.InfoContext(ctx, "logged into moraware", "url", pageURL.String())
	return nil
}

// Download fetches a protected file with the session cookies.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(fileURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", fileURL, err)
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("status %d downloading %s", res.StatusCode(), fileURL)
	}
	return res.Body(), res.Header().Get("Content-Type"), nil
}
