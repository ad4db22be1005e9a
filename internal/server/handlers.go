package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/instrumentation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

const auditSource = "proxy"

type tokenRequest struct {
	Code string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sendRequest struct {
	Token       string `json:"token"`
	AccountID   string `json:"accountId"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	FromAddress string `json:"fromAddress"`
}

type deleteRequest struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
	MessageID string `json:"messageId"`
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// tokenOf prefers an explicit token parameter over the Authorization header.
func tokenOf(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return bearerToken(r)
}

func queryCreds(r *http.Request) gateway.Credentials {
	q := r.URL.Query()
	return gateway.Credentials{
		AccessToken: tokenOf(r, q.Get("token")),
		AccountID:   q.Get("accountId"),
	}
}

func (p *Proxy) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	pair, err := p.grants.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (p *Proxy) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	pair, err := p.grants.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (p *Proxy) handleAccounts(w http.ResponseWriter, r *http.Request) {
	payload, err := p.gateway.ListAccounts(r.Context(), tokenOf(r, r.URL.Query().Get("token")))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}

func (p *Proxy) handleFolders(w http.ResponseWriter, r *http.Request) {
	payload, err := p.gateway.ListFolders(r.Context(), queryCreds(r))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}

func (p *Proxy) handleList(w http.ResponseWriter, r *http.Request) {
	payload, err := p.gateway.ListMessages(r.Context(), queryCreds(r), r.URL.Query().Get("folderId"))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}

func (p *Proxy) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payload, err := p.gateway.GetMessage(r.Context(), queryCreds(r), q.Get("folderId"), q.Get("messageId"))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}

func (p *Proxy) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	creds := gateway.Credentials{AccessToken: tokenOf(r, req.Token), AccountID: req.AccountID}

	event := instrumentation.NewAuditEvent(instrumentation.ActionSend, auditSource).
		WithAccount(req.AccountID).
		WithRecipient(req.To).
		WithSpanContext(r.Context())

	from := req.FromAddress
	if from == "" && creds.AccessToken != "" && creds.AccountID != "" {
		resolved, err := p.resolveFrom(r, creds)
		if err != nil {
			p.audit.Log(r.Context(), event.Complete(err))
			p.fail(w, r, err)
			return
		}
		from = resolved
	}

	payload, err := p.gateway.SendMessage(r.Context(), creds, gateway.OutgoingMessage{
		FromAddress: from,
		ToAddress:   req.To,
		Subject:     req.Subject,
		Content:     req.Body,
	})
	p.audit.Log(r.Context(), event.Complete(err))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}

// resolveFrom looks up the primary address of the account being sent from.
func (p *Proxy) resolveFrom(r *http.Request, creds gateway.Credentials) (string, error) {
	accounts, err := p.gateway.ListAccounts(r.Context(), creds.AccessToken)
	if err != nil {
		return "", err
	}
	for _, a := range accounts.Data {
		if a.AccountID.String() == creds.AccountID {
			return a.PrimaryEmailAddress, nil
		}
	}
	if len(accounts.Data) > 0 {
		return accounts.Data[0].PrimaryEmailAddress, nil
	}
	return "", nil
}

func (p *Proxy) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	// DELETE callers may pass the parameters in the query string instead.
	q := r.URL.Query()
	if req.Token == "" {
		req.Token = q.Get("token")
	}
	if req.AccountID == "" {
		req.AccountID = q.Get("accountId")
	}
	if req.MessageID == "" {
		req.MessageID = q.Get("messageId")
	}
	creds := gateway.Credentials{AccessToken: tokenOf(r, req.Token), AccountID: req.AccountID}

	event := instrumentation.NewAuditEvent(instrumentation.ActionDelete, auditSource).
		WithAccount(req.AccountID).
		WithMessage(req.MessageID).
		WithSpanContext(r.Context())

	payload, err := p.gateway.DeleteMessage(r.Context(), creds, req.MessageID)
	p.audit.Log(r.Context(), event.Complete(err))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	writeRaw(w, payload.Raw)
}
