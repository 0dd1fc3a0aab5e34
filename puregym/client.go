package puregym

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	BaseURL   = "https://www.puregym.dk/"
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"

	loginFormID = "user_login_form"
)

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to the PureGym member API on behalf of one member. The
// session cookie is obtained lazily and renewed once when a request comes
// back unauthenticated.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string

	username string
	password string
	limiter  *rate.Limiter

	mu       sync.Mutex
	loggedIn bool
}

func NewClient(username, password string, opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: opts.Timeout, Jar: jar},
		BaseURL:    opts.BaseURL,
		username:   username,
		password:   password,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Login fetches the front page for a fresh form_build_id and posts the
// member credentials with it.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	c.loggedIn = false

	page, err := c.fetchPage(ctx, "login page", http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return err
	}
	formBuildID, ok := findInputValue(page, "form_build_id")
	if !ok {
		return &RemoteError{Op: "login", Err: errors.New("form_build_id not found in login page")}
	}

	form := url.Values{}
	form.Set("form_build_id", formBuildID)
	form.Set("form_id", loginFormID)
	form.Set("name", c.username)
	form.Set("pass", c.password)
	form.Set("redirect_url", "")
	form.Set("op", "Log ind")

	page, err = c.fetchPage(ctx, "login", http.MethodPost, c.BaseURL, form)
	if err != nil {
		return err
	}
	// A rejected login renders the form again.
	if id, ok := findInputValue(page, "form_id"); ok && id == loginFormID {
		return fmt.Errorf("%w: credentials for %s were not accepted", ErrAuthentication, c.username)
	}

	c.loggedIn = true
	logrus.WithField("member", c.username).Info("Logged in to PureGym")
	return nil
}

func (c *Client) fetchPage(ctx context.Context, op, method, target string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.HTTPClient.Do(req)
}

// call performs an API request and decodes the JSON answer into out. An
// unauthenticated answer triggers one re-login and one retry.
func (c *Client) call(ctx context.Context, op, method, path string, query, form url.Values, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	err := c.callOnce(ctx, op, method, path, query, form, out)
	if !errors.Is(err, ErrAuthentication) {
		return err
	}

	logrus.WithFields(logrus.Fields{"member": c.username, "op": op}).Info("Session expired, logging in again")
	if err := c.login(ctx); err != nil {
		return err
	}
	return c.callOnce(ctx, op, method, path, query, form, out)
}

func (c *Client) callOnce(ctx context.Context, op, method, path string, query, form url.Values, out any) error {
	target := c.BaseURL + "api/" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.send(ctx, req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.loggedIn = false
		return fmt.Errorf("%s: %w", op, ErrAuthentication)
	case resp.StatusCode >= 300:
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	// The portal answers with the HTML login page when the session is gone.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '<' {
		c.loggedIn = false
		return fmt.Errorf("%s: %w", op, ErrAuthentication)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// AvailableClasses searches classes of the given types and centers between
// from and to (dates, inclusive). Booked classes carry a participation id.
func (c *Client) AvailableClasses(ctx context.Context, classIDs, centerIDs []int, from, to time.Time) ([]GymClass, error) {
	query := url.Values{}
	for _, id := range classIDs {
		query.Add("classes[]", strconv.Itoa(id))
	}
	for _, id := range centerIDs {
		query.Add("centers[]", strconv.Itoa(id))
	}
	query.Set("from", from.Format("2006-01-02"))
	query.Set("to", to.Format("2006-01-02"))

	var days []searchDay
	if err := c.call(ctx, "search_activities", http.MethodGet, "search_activities", query, nil, &days); err != nil {
		return nil, err
	}

	var classes []GymClass
	for _, day := range days {
		for _, item := range day.Items {
			item.Date = day.Date
			classes = append(classes, item)
		}
	}
	return classes, nil
}

// Book places a booking for the class occurrence identified by bookingID.
func (c *Client) Book(ctx context.Context, bookingID string, activityID int, paymentType string) (BookResult, error) {
	form := url.Values{}
	form.Set("bookingId", bookingID)
	form.Set("activityId", strconv.Itoa(activityID))
	form.Set("payment_type", paymentType)

	var resp statusResponse
	if err := c.call(ctx, "book_activity", http.MethodPost, "book_activity", nil, form, &resp); err != nil {
		return BookResult{}, err
	}
	if resp.Status != "success" {
		return BookResult{}, fmt.Errorf("%w: book %s: %s", ErrRejected, bookingID, describe(resp))
	}
	return BookResult{ParticipationID: string(resp.ParticipationID)}, nil
}

// Cancel removes the booking identified by participationID.
func (c *Client) Cancel(ctx context.Context, participationID string) error {
	form := url.Values{}
	form.Set("participationId", participationID)

	var resp statusResponse
	if err := c.call(ctx, "unbook_activity", http.MethodPost, "unbook_activity", nil, form, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("%w: unbook %s: %s", ErrRejected, participationID, describe(resp))
	}
	return nil
}

func (c *Client) ClassTypes(ctx context.Context) ([]ClassTypeGroup, error) {
	var resp activitiesResponse
	if err := c.call(ctx, "get_activities", http.MethodGet, "get_activities", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Classes, nil
}

func (c *Client) Centers(ctx context.Context) ([]CenterGroup, error) {
	var resp activitiesResponse
	if err := c.call(ctx, "get_activities", http.MethodGet, "get_activities", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Centers, nil
}

func describe(resp statusResponse) string {
	if resp.Message != "" {
		return fmt.Sprintf("status %q: %s", resp.Status, resp.Message)
	}
	return fmt.Sprintf("status %q", resp.Status)
}
