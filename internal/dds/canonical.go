package dds

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// CanonicalName derives the globally unique topic identifier
// "{kind}.{groupId}.{name}". Pure and total over valid inputs.
func CanonicalName(kind TopicKind, groupID int64, name string) string {
	return fmt.Sprintf("%s.%d.%s", kind, groupID, name)
}

// CanonicalNameXML is the canonical name with the name component escaped for
// embedding in XML documents.
func CanonicalNameXML(kind TopicKind, groupID int64, name string) string {
	return fmt.Sprintf("%s.%d.%s", kind, groupID, escapeXML(name))
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
