package enums

import "fmt"

// ProductCategory classifies catalog products.
type ProductCategory string

const (
	ProductCategoryPeptide    ProductCategory = "peptide"
	ProductCategoryGLP1       ProductCategory = "glp1"
	ProductCategoryHormone    ProductCategory = "hormone"
	ProductCategoryVitamin    ProductCategory = "vitamin"
	ProductCategorySupplement ProductCategory = "supplement"
	ProductCategoryResearch   ProductCategory = "research"
)

var validProductCategories = []ProductCategory{
	ProductCategoryPeptide,
	ProductCategoryGLP1,
	ProductCategoryHormone,
	ProductCategoryVitamin,
	ProductCategorySupplement,
	ProductCategoryResearch,
}

// String implements fmt.Stringer.
func (p ProductCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
