package outlook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"upcal/internal/adapter/loopback"
	"upcal/internal/core"
	"upcal/internal/store"
)

// SettingsURL is where a user who refused access can change their mind.
const SettingsURL = "https://account.live.com/consent/Manage"

const deniedState = "denied"

// tokenCredential bridges our saved OAuth2 token into the Azure SDK's
// TokenCredential interface, allowing the Microsoft Graph SDK to
// authenticate requests.
type tokenCredential struct {
	adapter *OutlookAdapter
}

func (c *tokenCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.adapter.accessToken(ctx)
	if err != nil {
		return azcore.AccessToken{}, err
	}
	c.adapter.tokenMu.Lock()
	expiry := c.adapter.token.Expiry
	c.adapter.tokenMu.Unlock()
	return azcore.AccessToken{
		Token:     tok,
		ExpiresOn: expiry,
	}, nil
}

// OutlookAdapter implements core.Provider for Microsoft Outlook /
// Office 365 using the official Microsoft Graph SDK.
type OutlookAdapter struct {
	id       string
	name     string
	clientID string
	tenantID string
	creds    *store.Store

	token   *oauth2.Token
	tokenMu sync.Mutex
	client  *msgraphsdk.GraphServiceClient

	calendars []core.CalendarRef
}

func NewOutlookAdapter(id, name, clientID, tenantID string, creds *store.Store) *OutlookAdapter {
	if tenantID == "" {
		tenantID = "common"
	}
	return &OutlookAdapter{
		id:       id,
		name:     name,
		clientID: clientID,
		tenantID: tenantID,
		creds:    creds,
	}
}

func (o *OutlookAdapter) ID() string   { return o.id }
func (o *OutlookAdapter) Name() string { return o.name }

// OAuthConfig returns the OAuth2 configuration for the Microsoft
// identity platform, with read-write calendar scope.
func (o *OutlookAdapter) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    o.clientID,
		Endpoint:    microsoft.AzureADEndpoint(o.tenantID),
		RedirectURL: loopback.RedirectURL,
		Scopes: []string{
			"https://graph.microsoft.com/Calendars.ReadWrite",
			"https://graph.microsoft.com/User.Read",
			"offline_access",
		},
	}
}

// AuthorizationStatus reads the credential store only; no network
// traffic, no failures.
func (o *OutlookAdapter) AuthorizationStatus(ctx context.Context) core.AuthStatus {
	if state, _ := o.creds.AuthState(o.id); state == deniedState {
		return core.AuthDenied
	}

	if _, err := o.creds.Token(o.id); err != nil {
		return core.AuthNotDetermined
	}
	return core.AuthGranted
}

// RequestFullAccess runs the loopback consent flow against Microsoft.
// An explicit refusal is persisted so Denied sticks across runs.
func (o *OutlookAdapter) RequestFullAccess(ctx context.Context) (core.AuthStatus, error) {
	if o.AuthorizationStatus(ctx) == core.AuthDenied {
		return core.AuthDenied, nil
	}

	if o.clientID == "" {
		return core.AuthNotDetermined, fmt.Errorf("client_id not configured for the Outlook provider")
	}

	tok, err := loopback.GetToken(ctx, o.OAuthConfig(), o.name, oauth2.SetAuthURLParam("prompt", "consent"))
	if err != nil {
		if errors.Is(err, loopback.ErrConsentDenied) {
			o.creds.SetAuthState(o.id, deniedState)
			return core.AuthDenied, nil
		}
		return core.AuthNotDetermined, err
	}

	if err := o.creds.SaveToken(o.id, tok); err != nil {
		return core.AuthNotDetermined, fmt.Errorf("save token: %w", err)
	}
	o.creds.ClearAuthState(o.id)

	return core.AuthGranted, nil
}

// ensureClient lazily loads the saved token and initializes the Graph
// SDK client plus the calendar list, once per process.
func (o *OutlookAdapter) ensureClient(ctx context.Context) error {
	if o.client != nil {
		return nil
	}

	tok, err := o.creds.Token(o.id)
	if err != nil {
		return fmt.Errorf("read token (run 'upcal auth' first): %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("stored token has no access token, run 'upcal auth' again")
	}
	o.token = tok

	cred := &tokenCredential{adapter: o}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{
		"https://graph.microsoft.com/.default",
	})
	if err != nil {
		return fmt.Errorf("create graph client: %w", err)
	}
	o.client = client

	return o.loadCalendarList(ctx)
}

// accessToken returns a valid access token, refreshing if expired.
func (o *OutlookAdapter) accessToken(ctx context.Context) (string, error) {
	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()

	if o.token.Valid() {
		return o.token.AccessToken, nil
	}

	src := o.OAuthConfig().TokenSource(ctx, o.token)
	newTok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("token expired and refresh failed (run 'upcal auth'): %w", err)
	}

	o.token = newTok
	o.creds.SaveToken(o.id, newTok)

	return newTok.AccessToken, nil
}

func (o *OutlookAdapter) loadCalendarList(ctx context.Context) error {
	result, err := o.client.Me().Calendars().Get(ctx, nil)
	if err != nil {
		return fmt.Errorf("load calendar list: %w", err)
	}

	o.calendars = o.calendars[:0]
	for _, cal := range result.GetValue() {
		id := cal.GetId()
		name := cal.GetName()
		if id == nil || name == nil {
			continue
		}
		o.calendars = append(o.calendars, core.CalendarRef{
			ID:    *id,
			Name:  *name,
			Color: derefStr(cal.GetHexColor()),
		})
	}

	return nil
}

func (o *OutlookAdapter) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	if err := o.ensureClient(ctx); err != nil {
		return nil, err
	}

	out := make([]core.CalendarRef, len(o.calendars))
	copy(out, o.calendars)
	return out, nil
}

// DefaultCalendar returns the mailbox's default calendar, the write
// target for new events.
func (o *OutlookAdapter) DefaultCalendar(ctx context.Context) (core.CalendarRef, error) {
	if err := o.ensureClient(ctx); err != nil {
		return core.CalendarRef{}, err
	}

	cal, err := o.client.Me().Calendar().Get(ctx, nil)
	if err != nil {
		return core.CalendarRef{}, fmt.Errorf("load default calendar: %w", err)
	}

	return core.CalendarRef{
		ID:    derefStr(cal.GetId()),
		Name:  derefStr(cal.GetName()),
		Color: derefStr(cal.GetHexColor()),
	}, nil
}
