package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/certs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/obs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/secrets"
)

type createApplicationRequest struct {
	GroupID     int64  `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type updateApplicationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Public      *bool   `json:"public"`
}

type applicationCreatedResponse struct {
	Application *dds.Application `json:"application"`
	Passphrase  string           `json:"passphrase"`
}

func (a *API) handleApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createApplicationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		app, passphrase, err := a.applications.Create(r.Context(), dds.CreateApplicationRequest{
			GroupID:     req.GroupID,
			Name:        req.Name,
			Description: req.Description,
			Public:      req.Public,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "application.create", map[string]any{
			"application_id": app.ID,
			"group_id":       app.GroupID,
			"name":           app.Name,
		})
		// The passphrase appears in this response only.
		writeJSON(w, http.StatusCreated, applicationCreatedResponse{
			Application: app,
			Passphrase:  passphrase,
		})
	case http.MethodGet:
		groupID, err := parseID(r.URL.Query().Get("group"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "group query parameter is required")
			return
		}
		if err := a.gate.RequireMember(r.Context(), groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		apps, err := a.store.Applications().ListByGroup(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, apps)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleApplicationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/applications/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	// Artifact routes are named, not id-scoped.
	if len(parts) == 1 {
		switch parts[0] {
		case "identity_ca.pem":
			a.serveSecretArtifact(w, r, secrets.IdentityCACertFile, "application/x-pem-file")
			return
		case "permissions_ca.pem":
			a.serveSecretArtifact(w, r, secrets.PermissionsCACertFile, "application/x-pem-file")
			return
		case "governance.xml":
			a.serveSecretArtifact(w, r, secrets.GovernanceFile, "application/xml")
			return
		case "permissions.json":
			a.servePermissionsJSON(w, r)
			return
		case "permissions.xml.p7s":
			a.servePermissionsSigned(w, r)
			return
		case "identity":
			a.serveIdentity(w, r)
			return
		}
	}

	applicationID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch {
	case len(parts) == 1:
		a.handleApplicationResource(w, r, applicationID)
	case len(parts) == 2 && parts[1] == "grant_token":
		a.handleGrantToken(w, r, applicationID)
	case len(parts) == 2 && parts[1] == "passphrase":
		a.handlePassphraseRotation(w, r, applicationID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleApplicationPermissions(w, r, applicationID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleApplicationResource(w http.ResponseWriter, r *http.Request, applicationID int64) {
	switch r.Method {
	case http.MethodGet:
		app, err := a.applications.Get(r.Context(), applicationID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	case http.MethodPut:
		var req updateApplicationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		app, err := a.applications.Update(r.Context(), applicationID, dds.UpdateApplicationRequest{
			Name:        req.Name,
			Description: req.Description,
			Public:      req.Public,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	case http.MethodDelete:
		if err := a.applications.Delete(r.Context(), applicationID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "application.delete", map[string]any{"application_id": applicationID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleGrantToken issues a bind token for an application. The response is
// the raw compact JWT.
func (a *API) handleGrantToken(w http.ResponseWriter, r *http.Request, applicationID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	app, err := a.store.Applications().Find(r.Context(), applicationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.gate.RequireApplicationAdmin(r.Context(), app.GroupID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	group, err := a.store.Groups().Find(r.Context(), app.GroupID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	email := ""
	if user, ok := authz.UserFromContext(r.Context()); ok {
		email = user.Email
	}
	token, err := a.tokens.Generate(app.ID, email, app.Name, group.ID, group.Name)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	a.audit(r.Context(), "application.grant_token.issued", map[string]any{
		"application_id": app.ID,
		"group_id":       group.ID,
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

func (a *API) handlePassphraseRotation(w http.ResponseWriter, r *http.Request, applicationID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	passphrase, err := a.applications.RotatePassphrase(r.Context(), applicationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "application.passphrase.rotated", map[string]any{
		"application_id": applicationID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"passphrase": passphrase})
}

func (a *API) handleApplicationPermissions(w http.ResponseWriter, r *http.Request, applicationID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, hasUser := authz.UserFromContext(r.Context())
	_, hasApp := authz.ApplicationFromContext(r.Context())
	if !hasUser && !hasApp {
		app, err := a.store.Applications().Find(r.Context(), applicationID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !a.applications.PubliclyVisible(r.Context(), app) {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
	}
	perms, err := a.permissions.ListByApplication(r.Context(), applicationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// --- artifact handlers ---

// serveSecretArtifact serves provisioned CA material with the secret store's
// version tag as the ETag.
func (a *API) serveSecretArtifact(w http.ResponseWriter, r *http.Request, name, contentType string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	var (
		content string
		ok      bool
	)
	switch name {
	case secrets.IdentityCACertFile:
		content, ok = a.secretStore.IdentityCACert()
	case secrets.PermissionsCACertFile:
		content, ok = a.secretStore.PermissionsCACert()
	case secrets.GovernanceFile:
		content, ok = a.secretStore.Governance()
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "artifact not provisioned")
		return
	}
	etag := `"` + a.secretStore.Etag(name) + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	_, _ = w.Write([]byte(content))
}

// callingApplication resolves the artifact requester. Document and identity
// artifacts exist only for authenticated applications; anything else reads as
// absent.
func (a *API) callingApplication(w http.ResponseWriter, r *http.Request) (*dds.Application, bool) {
	principal, ok := authz.ApplicationFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return nil, false
	}
	app, err := a.store.Applications().Find(r.Context(), principal.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return app, true
}

func (a *API) requestNonce(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !r.URL.Query().Has("nonce") {
		writeError(w, r, http.StatusBadRequest, "nonce query parameter is required")
		return "", false
	}
	nonce := r.URL.Query().Get("nonce")
	if err := dds.ValidateNonce(nonce); err != nil {
		handleServiceError(w, r, err)
		return "", false
	}
	return nonce, true
}

func (a *API) buildDocument(w http.ResponseWriter, r *http.Request) (dds.PermissionsDocument, bool) {
	app, ok := a.callingApplication(w, r)
	if !ok {
		return dds.PermissionsDocument{}, false
	}
	nonce, ok := a.requestNonce(w, r)
	if !ok {
		return dds.PermissionsDocument{}, false
	}
	perms, err := dds.BuildGrantPermissions(r.Context(), a.store, app, timeNow())
	if err != nil {
		handleServiceError(w, r, err)
		return dds.PermissionsDocument{}, false
	}
	return dds.NewPermissionsDocument(app, nonce, perms), true
}

func (a *API) servePermissionsJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	doc, ok := a.buildDocument(w, r)
	if !ok {
		return
	}
	body, etag, err := doc.RenderJSON()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "document rendering failed")
		return
	}
	quoted := `"` + etag + `"`
	if match := r.Header.Get("If-None-Match"); match != "" && match == quoted {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	obs.CountDocument("json")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", quoted)
	_, _ = w.Write(body)
}

func (a *API) servePermissionsSigned(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	doc, ok := a.buildDocument(w, r)
	if !ok {
		return
	}
	xml, err := doc.RenderXML()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "document rendering failed")
		return
	}
	signed, err := a.signer.SignPermissionsDocument(xml)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.CountDocument("signed")
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	_, _ = w.Write([]byte(signed))
}

func (a *API) serveIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	app, ok := a.callingApplication(w, r)
	if !ok {
		return
	}
	nonce, ok := a.requestNonce(w, r)
	if !ok {
		return
	}
	creds, err := a.signer.IssueIdentityCertificate(certs.Subject{
		CommonName: strconv.FormatInt(app.ID, 10) + "_" + nonce,
		GivenName:  app.Name,
		Surname:    strconv.FormatInt(app.GroupID, 10),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.CountCertificate()
	a.audit(r.Context(), "application.identity.issued", map[string]any{
		"application_id": app.ID,
	})
	writeJSON(w, http.StatusOK, creds)
}
