package ingest

// FieldAliases lists, per canonical transaction field, the source header names
// a vendor may use. Resolution is first-present-wins over the declared order.
type FieldAliases struct {
	LocationID      []string
	UPC             []string
	ProductName     []string
	UnitPrice       []string
	TotalAmount     []string
	TransactionDate []string
}

// VendorSchema describes one known vendor CSV convention.
type VendorSchema struct {
	// Name is the display name stamped on transactions as VendorSource.
	Name string
	// Key is the stable identifier recorded on csv_uploads.
	Key string
	// RequiredHeaders must all be present for the schema to match.
	RequiredHeaders []string
	// Fields maps canonical fields to acceptable source headers.
	Fields FieldAliases
}

// vendorSchemas is the static registry, loaded once. Declaration order is the
// explicit tie-break: when a header set satisfies more than one schema, the
// first-listed schema wins. Adding a vendor means appending an entry here;
// detection, normalization and reconciliation stay untouched.
var vendorSchemas = []VendorSchema{
	{
		Name:            "Vendor A",
		Key:             "vendor_a",
		RequiredHeaders: []string{"Location_ID", "Trans_Date"},
		Fields: FieldAliases{
			LocationID:      []string{"Location_ID", "Location ID"},
			UPC:             []string{"Scancode", "UPC"},
			ProductName:     []string{"Product_Name", "Product Name"},
			UnitPrice:       []string{"Price"},
			TotalAmount:     []string{"Total_Amount", "Total Amount"},
			TransactionDate: []string{"Trans_Date", "Transaction Date"},
		},
	},
	{
		Name:            "Vendor B",
		Key:             "vendor_b",
		RequiredHeaders: []string{"Site_Code", "Sale_Date"},
		Fields: FieldAliases{
			LocationID:      []string{"Site_Code"},
			UPC:             []string{"UPC"},
			ProductName:     []string{"Item_Description"},
			UnitPrice:       []string{"Unit_Price"},
			TotalAmount:     []string{"Final_Total"},
			TransactionDate: []string{"Sale_Date"},
		},
	},
}

// Schemas returns the registered vendor schemas in declaration order.
func Schemas() []VendorSchema {
	out := make([]VendorSchema, len(vendorSchemas))
	copy(out, vendorSchemas)
	return out
}
