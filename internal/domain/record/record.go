// Package record defines the owned record model shared by locks and groups.
package record

// Kind discriminates the two record tables.
type Kind string

const (
	KindLock  Kind = "lock"
	KindGroup Kind = "group"
)

// Record is a single owned entry within one owner's partition. Owner is set
// once at creation from the caller's identity and never changes; CreatedAt is
// the sort key within the partition and is unique per owner.
type Record struct {
	Owner      string            `json:"owner"`
	CreatedAt  string            `json:"createdAt"`
	Group      string            `json:"group,omitempty"`
	Date       string            `json:"date,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Clone returns a deep copy so stored records cannot be mutated by callers.
func (r Record) Clone() Record {
	if len(r.Attributes) > 0 {
		attrs := make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			attrs[k] = v
		}
		r.Attributes = attrs
	} else {
		r.Attributes = nil
	}
	return r
}
