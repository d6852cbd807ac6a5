package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Document is a knowledge-base entry owned by one sub-team.
type Document struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Subteam      string    `json:"subteam" bson:"subteam"`
	SerialNumber string    `json:"serialNumber" bson:"serialNumber"`
	Title        string    `json:"title" bson:"title"`
	Content      string    `json:"content" bson:"content"`
	Tags         Tags      `json:"tags" bson:"tag"`
	Attachments  []string  `json:"attachments" bson:"attachments"`
	Author       string    `json:"author" bson:"author"`
	AuthorID     string    `json:"authorId,omitempty" bson:"authorId,omitempty"`
	IsPinned     bool      `json:"isPinned" bson:"isPinned"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy so callers never share slices with a store.
// Missing tag and attachment lists come back empty, never nil.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = make(Tags, len(d.Tags))
	copy(c.Tags, d.Tags)
	c.Attachments = make([]string, len(d.Attachments))
	copy(c.Attachments, d.Attachments)
	return &c
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title        *string
	Content      *string
	IsPinned     *bool
	Tags         *Tags
	Attachments  *[]string
	SerialNumber *string
}

// Apply merges p into d. Timestamps are the store's concern.
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.IsPinned != nil {
		d.IsPinned = *p.IsPinned
	}
	if p.Tags != nil {
		d.Tags = NormalizeTags(*p.Tags)
	}
	if p.Attachments != nil {
		d.Attachments = make([]string, len(*p.Attachments))
		copy(d.Attachments, *p.Attachments)
	}
	if p.SerialNumber != nil {
		d.SerialNumber = *p.SerialNumber
	}
}

// Tags is the normalized tag list of a document. Older records store a single
// string instead of a list, so both forms are accepted when decoding JSON or BSON.
type Tags []string

// NormalizeTags trims every tag, drops empties and removes duplicates while
// keeping the first occurrence.
func NormalizeTags(in []string) Tags {
	out := make(Tags, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Has reports whether tag is present.
func (t Tags) Has(tag string) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = Tags{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = NormalizeTags([]string{s})
		return nil
	case data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*t = NormalizeTags(list)
		return nil
	}
	return fmt.Errorf("tags: unsupported JSON value %s", string(data))
}

func (t *Tags) UnmarshalBSONValue(bt bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: bt, Value: data}
	switch bt {
	case bsontype.Null, bsontype.Undefined:
		*t = Tags{}
		return nil
	case bsontype.String:
		s, ok := rv.StringValueOK()
		if !ok {
			return fmt.Errorf("tags: malformed string")
		}
		*t = NormalizeTags([]string{s})
		return nil
	case bsontype.Array:
		var list []string
		if err := rv.Unmarshal(&list); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		*t = NormalizeTags(list)
		return nil
	}
	return fmt.Errorf("tags: unsupported BSON type %s", bt)
}
