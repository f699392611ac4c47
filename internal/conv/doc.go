// Package conv provides overflow-checked integer conversions used at
// serialization boundaries, where on-disk widths differ from int.
package conv
