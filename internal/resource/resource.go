package resource

import "time"

// Resource is a single healthcare resource instance: a resource type
// (e.g. "Patient"), a server-assigned id, a JSON document body, and the
// optimistic-locking metadata FHIR calls "meta".
type Resource struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id"`
	VersionID    int            `json:"versionId"`
	LastUpdated  time.Time      `json:"lastUpdated"`
	Data         map[string]any `json:"-"`
}

// AsDocument renders the resource the way it is stored and returned over
// the wire: the caller's data fields plus the server-assigned envelope.
func (r *Resource) AsDocument() map[string]any {
	doc := make(map[string]any, len(r.Data)+4)
	for k, v := range r.Data {
		doc[k] = v
	}
	doc["resourceType"] = r.ResourceType
	doc["id"] = r.ID
	doc["meta"] = map[string]any{
		"versionId":   r.VersionID,
		"lastUpdated": r.LastUpdated,
	}
	return doc
}
