package ingest

// DetectVendor returns the first registered schema whose required headers are
// all present in the given header row. It reports false when no schema
// qualifies. Pure function, no I/O.
func DetectVendor(headers []string) (VendorSchema, bool) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	for _, schema := range vendorSchemas {
		if matchesRequired(schema, present) {
			return schema, true
		}
	}
	return VendorSchema{}, false
}

func matchesRequired(schema VendorSchema, present map[string]struct{}) bool {
	for _, required := range schema.RequiredHeaders {
		if _, ok := present[required]; !ok {
			return false
		}
	}
	return true
}
