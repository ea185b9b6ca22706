// Package catalog reports the legal values of an axis given the values
// already chosen for other axes.
//
// A Catalog is a function of the chosen prefix. Cascading dropdowns make the
// options of one control depend on the others, so every call must look at
// the page afresh; nothing here caches results across prefixes.
package catalog
