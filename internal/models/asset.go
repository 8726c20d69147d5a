package models

// Attribute is one descriptive column of an asset row, kept in source column order.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AssetRow is one row of a branch dataset. AssetName is not unique: sibling rows share it.
type AssetRow struct {
	AssetName  string      `json:"assetName"`
	RegionTag  string      `json:"regionTag"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attr returns the value of the named attribute.
func (r AssetRow) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
