package dds

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// DefaultDomain is the DDS domain id embedded in generated documents.
const DefaultDomain = 1

var nonceRe = regexp.MustCompile(`^[a-zA-Z0-9]*$`)

// ValidateNonce checks the caller-supplied nonce against the allowed
// alphanumeric alphabet.
func ValidateNonce(nonce string) error {
	if !nonceRe.MatchString(nonce) {
		return fmt.Errorf("%w: %q", ErrInvalidNonce, nonce)
	}
	return nil
}

// BuildSubject assembles the distinguished-name string bound into documents
// and identity certificates: CN={appID}_{nonce},GN={appName},SN={groupID}.
// Commas in the application name are escaped so they cannot split the DN.
func BuildSubject(app *Application, nonce string) string {
	name := strings.ReplaceAll(app.Name, ",", `\,`)
	return fmt.Sprintf("CN=%d_%s,GN=%s,SN=%d", app.ID, nonce, name, app.GroupID)
}

// PermissionsDocument is the aggregated model plus the request-bound subject,
// rendered both as JSON and as the governance XML artifact.
type PermissionsDocument struct {
	Subject       string        `json:"subject"`
	ApplicationID int64         `json:"application_id"`
	Domain        int           `json:"domain"`
	ValidStart    time.Time     `json:"valid_start"`
	ValidEnd      time.Time     `json:"valid_end"`
	Subscribes    []PubSubEntry `json:"subscribes"`
	Publishes     []PubSubEntry `json:"publishes"`
}

// NewPermissionsDocument binds the aggregated permissions to an application
// and nonce. The nonce must already be validated.
//
// Validity times are truncated to whole seconds. The XML form renders at
// second precision anyway, and the ETag must not vary with sub-second clock
// jitter between otherwise identical requests.
func NewPermissionsDocument(app *Application, nonce string, perms GrantPermissions) PermissionsDocument {
	doc := PermissionsDocument{
		Subject:       BuildSubject(app, nonce),
		ApplicationID: app.ID,
		Domain:        DefaultDomain,
		ValidStart:    perms.ValidStart.Truncate(time.Second),
		ValidEnd:      perms.ValidEnd.Truncate(time.Second),
	}
	for _, e := range perms.Subscribes {
		doc.Subscribes = append(doc.Subscribes, truncateEntry(e))
	}
	for _, e := range perms.Publishes {
		doc.Publishes = append(doc.Publishes, truncateEntry(e))
	}
	return doc
}

func truncateEntry(e PubSubEntry) PubSubEntry {
	e.ValidStart = e.ValidStart.Truncate(time.Second)
	e.ValidEnd = e.ValidEnd.Truncate(time.Second)
	return e
}

// RenderJSON produces the JSON form and its ETag, the uppercase MD5 hex of
// the body. The ETag also guards the XML form: both derive from the same
// aggregated model.
func (d PermissionsDocument) RenderJSON() ([]byte, string, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, "", err
	}
	sum := md5.Sum(body)
	return body, strings.ToUpper(fmt.Sprintf("%x", sum)), nil
}

const permissionsTimeLayout = "2006-01-02T15:04:05Z"

var permissionsTemplate = template.Must(template.New("permissions").Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<dds xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://www.omg.org/spec/DDS-SECURITY/20170901/omg_shared_ca_permissions.xsd">
  <permissions>
    <grant name="{{.GrantName}}">
      <subject_name>{{.Subject}}</subject_name>
      <validity>
        <not_before>{{.ValidStart}}</not_before>
        <not_after>{{.ValidEnd}}</not_after>
      </validity>
{{- range .Rules}}
      <allow_rule>
        <validity>
          <not_before>{{.ValidStart}}</not_before>
          <not_after>{{.ValidEnd}}</not_after>
        </validity>
        <domains>
          <id>{{$.Domain}}</id>
        </domains>
        <{{.Verb}}>
          <topics>
{{- range .Topics}}
            <topic>{{.}}</topic>
{{- end}}
          </topics>
{{- if .Partitions}}
          <partitions>
{{- range .Partitions}}
            <partition>{{.}}</partition>
{{- end}}
          </partitions>
{{- end}}
        </{{.Verb}}>
      </allow_rule>
{{- end}}
      <default>DENY</default>
    </grant>
  </permissions>
</dds>
`))

type xmlRule struct {
	Verb       string
	Topics     []string
	Partitions []string
	ValidStart string
	ValidEnd   string
}

type xmlDocument struct {
	GrantName  string
	Subject    string
	Domain     int
	ValidStart string
	ValidEnd   string
	Rules      []xmlRule
}

// RenderXML produces the governance/permissions XML artifact. All embedded
// strings are XML-escaped here; the JSON form stays raw.
func (d PermissionsDocument) RenderXML() ([]byte, error) {
	doc := xmlDocument{
		GrantName:  fmt.Sprintf("grant_%d", d.ApplicationID),
		Subject:    escapeXML(d.Subject),
		Domain:     d.Domain,
		ValidStart: d.ValidStart.UTC().Format(permissionsTimeLayout),
		ValidEnd:   d.ValidEnd.UTC().Format(permissionsTimeLayout),
	}
	for _, e := range d.Subscribes {
		doc.Rules = append(doc.Rules, newXMLRule("subscribe", e))
	}
	for _, e := range d.Publishes {
		doc.Rules = append(doc.Rules, newXMLRule("publish", e))
	}

	var buf bytes.Buffer
	if err := permissionsTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render permissions document: %w", err)
	}
	return buf.Bytes(), nil
}

func newXMLRule(verb string, e PubSubEntry) xmlRule {
	rule := xmlRule{
		Verb:       verb,
		ValidStart: e.ValidStart.UTC().Format(permissionsTimeLayout),
		ValidEnd:   e.ValidEnd.UTC().Format(permissionsTimeLayout),
	}
	for _, t := range e.Topics {
		rule.Topics = append(rule.Topics, escapeXML(t))
	}
	for _, p := range e.Partitions {
		rule.Partitions = append(rule.Partitions, escapeXML(p))
	}
	return rule
}
