// Package batch derives uniquely identifiable NTDV1 ingestion messages from a
// template and tracks them as a plan for one end-to-end verification run.
package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"knoxharness/queue"
)

// Template is a generic JSON document tree. Builders never mutate a template
// in place; every work item is built on a deep copy.
type Template map[string]any

// LoadTemplate reads a message template from disk.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var tmpl Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return tmpl, nil
}

// WorkItem is one unit of submitted work: the message payload plus the
// traceable identifier used to verify it end to end. Identity is the
// identifier, not the payload.
type WorkItem struct {
	TransactionID string
	Payload       Template
}

// Plan aggregates the work items of one run under a shared batch id and
// organization. Membership is fixed at build time; the only mutation ever
// applied is marking the plan sent after successful submission.
type Plan struct {
	OrganizationID string
	BatchID        string
	Items          []WorkItem
	TransactionIDs []string
	sent           bool
}

// MarkSent records that submission completed.
func (p *Plan) MarkSent() { p.sent = true }

// Sent reports whether the plan has been submitted.
func (p *Plan) Sent() bool { return p.sent }

// Entries renders the plan's items as delivery-channel entries.
func (p *Plan) Entries() ([]queue.Entry, error) {
	entries := make([]queue.Entry, 0, len(p.Items))
	for _, item := range p.Items {
		body, err := json.Marshal(item.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode message %s: %w", item.TransactionID, err)
		}
		entries = append(entries, queue.Entry{ID: item.TransactionID, Body: body})
	}
	return entries, nil
}

// NewBatchID returns a fresh correlation id for one logical batch.
func NewBatchID() string {
	return "batch-" + ulid.Make().String()
}

// Build derives count work items from the template. Each item is a deep copy
// carrying a fresh ULID record suffix as its traceable identifier, the
// organization and batch stamped into its metadata, a fresh whole-second UTC
// timestamp, ordinal order/customer suffixes, and a derived line_id on every
// line item.
func Build(tmpl Template, organizationID, batchID string, count int) (*Plan, error) {
	if count <= 0 {
		return nil, fmt.Errorf("batch count must be positive, got %d", count)
	}

	baseOrderNumber := stringAt(tmpl, "ORDER", "transaction_data", "metadata", "order_number")
	baseCustomerID := stringAt(tmpl, "CUSTOMER", "transaction_data", "metadata", "customer_id")

	plan := &Plan{
		OrganizationID: organizationID,
		BatchID:        batchID,
		Items:          make([]WorkItem, 0, count),
		TransactionIDs: make([]string, 0, count),
	}

	for index := 0; index < count; index++ {
		message := clone(tmpl)
		suffix := ulid.Make().String()

		message["id"] = fmt.Sprintf("%s|%s", organizationID, suffix)
		setPath(message, FormatTimestamp(time.Now()), "transaction_data", "transaction_date")
		setPath(message, organizationID, "transaction_data", "metadata", "organization_id")
		setPath(message, batchID, "transaction_data", "metadata", "batch_id")
		setPath(message, FormatTimestamp(time.Now()), "transaction_data", "metadata", "batch_date")
		setPath(message, fmt.Sprintf("%s-%04d", baseOrderNumber, index), "transaction_data", "metadata", "order_number")
		setPath(message, fmt.Sprintf("%s-%04d", baseCustomerID, index), "transaction_data", "metadata", "customer_id")
		setPath(message, "integration-"+organizationID, "transaction_data", "metadata", "meta_integration_id")

		if lineItems, ok := message["line_item_data"].([]any); ok {
			for lineIndex, raw := range lineItems {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				metadata, ok := item["metadata"].(map[string]any)
				if !ok {
					metadata = map[string]any{}
					item["metadata"] = metadata
				}
				metadata["line_id"] = fmt.Sprintf("%s-line-%d", suffix, lineIndex)
			}
		}

		plan.Items = append(plan.Items, WorkItem{TransactionID: suffix, Payload: message})
		plan.TransactionIDs = append(plan.TransactionIDs, suffix)
	}

	return plan, nil
}

// FormatTimestamp renders a timestamp the way the ingestion schema expects:
// UTC, truncated to whole seconds, RFC3339 with a literal Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// clone deep-copies a JSON tree of maps, slices and scalars.
func clone(tmpl Template) Template {
	return deepCopy(map[string]any(tmpl)).(map[string]any)
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// setPath writes value at the given key path, creating intermediate objects
// as needed so the override set stays total over sparse templates.
func setPath(doc map[string]any, value any, path ...string) {
	current := doc
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// stringAt reads a string at the given key path, falling back when the path
// is absent or not a string.
func stringAt(doc map[string]any, fallback string, path ...string) string {
	var current any = doc
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return fallback
		}
		current, ok = node[key]
		if !ok {
			return fallback
		}
	}
	if s, ok := current.(string); ok {
		return s
	}
	return fallback
}
