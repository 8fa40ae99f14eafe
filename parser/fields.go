package parser

// Field names a canonical item attribute.
type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldBrand       Field = "brand"
	FieldPrice       Field = "price"
	FieldListPrice   Field = "list_price"
	FieldDescription Field = "description"
	FieldImages      Field = "images"
	FieldRating      Field = "rating"
	FieldRatingCount Field = "rating_count"
	FieldSizes       Field = "sizes"
	FieldColors      Field = "colors"
)

// FieldTable maps each canonical field to source keys in priority order.
type FieldTable map[Field][]string

// DefaultContainerKeys are checked in order when locating the product list.
var DefaultContainerKeys = []string{"products", "items", "data", "results", "listings", "productList"}

// DefaultPaginationKeys are checked in order when deciding whether more pages exist.
var DefaultPaginationKeys = []string{"hasNext", "hasMore", "hasNextPage", "totalPages", "nextPage", "pagination"}

// nestedFlagKeys are looked up inside object-valued pagination keys.
var nestedFlagKeys = []string{"hasNext", "hasMore", "hasNextPage"}

// DefaultFieldTable is the candidate-key table used for storefront payloads.
var DefaultFieldTable = FieldTable{
	FieldID:          {"id", "productId", "sku", "itemId", "styleId"},
	FieldName:        {"name", "title", "productName", "displayName"},
	FieldBrand:       {"brand", "brandName", "manufacturer"},
	FieldPrice:       {"price", "currentPrice", "sellingPrice"},
	FieldListPrice:   {"originalPrice", "mrp", "listPrice"},
	FieldDescription: {"description", "details", "productDescription"},
	FieldImages:      {"images", "imageUrls", "photos", "media", "searchImage"},
	FieldRating:      {"rating", "avgRating", "averageRating"},
	FieldRatingCount: {"ratingCount", "reviewCount", "numReviews"},
	FieldSizes:       {"sizes", "availableSizes", "variants"},
	FieldColors:      {"colors", "availableColors", "colorOptions", "primaryColour"},
}

// keys looked up inside object values when a scalar is expected.
var (
	nameKeys   = []string{"name", "value", "text", "label"}
	amountKeys = []string{"value", "amount", "discounted", "mrp"}
	imageKeys  = []string{"src", "url", "secureSrc", "imageURL", "imageUrl", "href"}
)
