package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleOptions struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
	TimeZone        string
	// Endpoint and HTTPClient replace the OAuth flow, for tests and proxies.
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GoogleService inserts events into a Google Calendar. The OAuth token is
// obtained out of band and read from TokenFile.
type GoogleService struct {
	svc        *gcal.Service
	calendarID string
	timeZone   string
	logger     *zap.Logger
}

func NewGoogleService(ctx context.Context, opts GoogleOptions) (*GoogleService, error) {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	clientOpts := []option.ClientOption{}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	} else {
		httpClient, err := oauthClient(ctx, opts.CredentialsFile, opts.TokenFile)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create google calendar client: %w", err)
	}
	return &GoogleService{svc: svc, calendarID: opts.CalendarID, timeZone: opts.TimeZone, logger: opts.Logger}, nil
}

func oauthClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	if credentialsFile == "" || tokenFile == "" {
		return nil, fmt.Errorf("%w: calendar.credentials_file and calendar.token_file are required", ErrAuth)
	}
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", ErrAuth, err)
	}
	config, err := google.ConfigFromJSON(credentials, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %v", ErrAuth, err)
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read token: %v", ErrAuth, err)
	}
	defer f.Close()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", ErrAuth, err)
	}
	return config.Client(ctx, &token), nil
}

func (s *GoogleService) Name() string { return "google" }

func (s *GoogleService) Insert(ctx context.Context, req Request) (Created, error) {
	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       s.eventTime(req.Start),
		End:         s.eventTime(req.End),
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, email := range emailsOnly(req.Attendees) {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := s.svc.Events.Insert(s.calendarID, event).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return Created{}, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		if strings.Contains(err.Error(), "oauth2:") {
			return Created{}, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return Created{}, fmt.Errorf("insert google calendar event: %w", err)
	}

	s.logger.Debug("google calendar event inserted", zap.String("id", created.Id), zap.String("calendar", s.calendarID))
	return Created{ID: created.Id, Link: created.HtmlLink}, nil
}

func (s *GoogleService) eventTime(t time.Time) *gcal.EventDateTime {
	if s.timeZone != "" {
		if loc, err := time.LoadLocation(s.timeZone); err == nil {
			t = t.In(loc)
		}
	}
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: s.timeZone}
}
