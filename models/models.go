// Package models holds the typed records exchanged with the Knox transaction
// API: the versioned upsert schema and the search protocol envelopes.
package models

import "time"

type TransactionType string

const (
	TransactionTypeOrder  TransactionType = "Order"
	TransactionTypeRefund TransactionType = "Refund"
)

type SalesChannelType string

const (
	SalesChannelMarketplace SalesChannelType = "Marketplace"
	SalesChannelWebshop     SalesChannelType = "Webshop"
)

type IntegrationType string

const (
	IntegrationXero        IntegrationType = "xero"
	IntegrationMagento     IntegrationType = "magento"
	IntegrationEtsy        IntegrationType = "etsy"
	IntegrationShopify     IntegrationType = "shopify"
	IntegrationBigCommerce IntegrationType = "bigcommerce"
	IntegrationWooCommerce IntegrationType = "woocommerce"
	IntegrationStripe      IntegrationType = "stripe"
	IntegrationAmazon      IntegrationType = "amazon_seller_central"
	IntegrationWix         IntegrationType = "wix"
	IntegrationEbay        IntegrationType = "ebay"
	IntegrationQuickbooks  IntegrationType = "quickbooks"
	IntegrationWalmart     IntegrationType = "walmart"
)

type Address struct {
	Street     *string `json:"street"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
	State      *string `json:"state"`
	Country    *string `json:"country"`
}

// VersionMetadata describes where a record version sits relative to the live
// and latest versions of the same transaction.
type VersionMetadata struct {
	Version       int `json:"version"`
	LiveVersion   int `json:"live_version"`
	LatestVersion int `json:"latest_version"`
}

type TransactionLineItemMetadata struct {
	StandardTemplateRecordsID int     `json:"standard_template_records_id"`
	LineID                    *string `json:"line_id,omitempty"`
	// Deprecated: no longer set in records sent from the tax engine.
	TransactionNumber *string `json:"transaction_number,omitempty"`
}

type TransactionLineItem struct {
	SKU              *string                     `json:"sku,omitempty"`
	ItemDescription  *string                     `json:"item_description,omitempty"`
	ItemQuantity     *int                        `json:"item_quantity,omitempty"`
	ItemPrice        *float64                    `json:"item_price,omitempty"`
	ItemDiscount     *float64                    `json:"item_discount,omitempty"`
	LineItemMetadata TransactionLineItemMetadata `json:"line_item_metadata"`
}

type StandardTemplateRecordVersionData struct {
	ID            int        `json:"id"`
	MetaUpdatedAt *time.Time `json:"meta_updated_at"`
}

type TransactionMetadata struct {
	StandardTemplateRecordsID int                                 `json:"standard_template_records_id"`
	MetaSalePlatform          *string                             `json:"meta_sale_platform,omitempty"`
	DataSource                *string                             `json:"data_source,omitempty"`
	DataSourceURL             *string                             `json:"data_source_url,omitempty"`
	OrganizationID            string                              `json:"organization_id"`
	BatchID                   *string                             `json:"batch_id,omitempty"`
	BatchDate                 *time.Time                          `json:"batch_date,omitempty"`
	CustomerID                *string                             `json:"customer_id,omitempty"`
	OrderNumber               string                              `json:"order_number"`
	MetaIntegrationID         *string                             `json:"meta_integration_id"`
	MetaIntegrationType       *IntegrationType                    `json:"meta_integration_type"`
	EditedBy                  *string                             `json:"edited_by"`
	DeletionJobID             *string                             `json:"deletion_job_id"`
	DeletedAt                 *time.Time                          `json:"deleted_at"`
	RecordVersions            []StandardTemplateRecordVersionData `json:"transaction_standard_template_record_versions,omitempty"`
	TransactionNumber         *string                             `json:"transaction_number,omitempty"`
	RefundID                  *string                             `json:"refund_id,omitempty"`
}

// TransactionData is the versioned record schema consumed by the upsert
// endpoint, line items included.
type TransactionData struct {
	ModelVersion           int                   `json:"model_version"`
	RecordID               string                `json:"record_id"`
	Version                *int                  `json:"version,omitempty"`
	TransactionID          string                `json:"transaction_id"`
	TransactionType        TransactionType       `json:"transaction_type"`
	SalesChannelType       *SalesChannelType     `json:"sales_channel_type,omitempty"`
	TransactionDate        time.Time             `json:"transaction_date"`
	ExemptionType          *string               `json:"exemption_type,omitempty"`
	Currency               *string               `json:"currency,omitempty"`
	NetReceiptPreTax       *float64              `json:"net_receipt_pre_tax,omitempty"`
	ShippingReceiptPreTax  *float64              `json:"shipping_receipt_pre_tax,omitempty"`
	TaxCharged             *float64              `json:"tax_charged,omitempty"`
	ShippingToAddress      *Address              `json:"shipping_to_address,omitempty"`
	ShippingFromAddress    *Address              `json:"shipping_from_address,omitempty"`
	BillingAddress         *Address              `json:"billing_address,omitempty"`
	Excluded               bool                  `json:"excluded"`
	TransactionMetadata    TransactionMetadata   `json:"transaction_metadata"`
	LineItems              []TransactionLineItem `json:"line_items"`
}

// Transaction is the full record as returned by the API: the data plus the
// reference id and version placement assigned by Knox.
type Transaction struct {
	ReferenceID     string          `json:"reference_id"`
	VersionMetadata VersionMetadata `json:"version_metadata"`
	TransactionData
}

// Filter is one field predicate in a search request.
type Filter struct {
	Data     []string `json:"data"`
	Operator string   `json:"operator"`
}

// Eq builds an equality filter over the given values.
func Eq(values ...string) Filter {
	return Filter{Data: values, Operator: "eq"}
}

type Pagination struct {
	Limit int `json:"limit"`
}

type SearchRequest struct {
	Filters    map[string]Filter `json:"filters"`
	Pagination Pagination        `json:"pagination"`
}

// TransactionRecord is the slice of a search hit the harness cares about: the
// traceable identifier and the batch correlation it was submitted under.
type TransactionRecord struct {
	TransactionID string `json:"transaction_id"`
	BatchID       string `json:"batch_id,omitempty"`
}

type SearchResult struct {
	Data []TransactionRecord `json:"data"`
}
