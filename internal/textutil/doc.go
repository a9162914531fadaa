// Package textutil provides naming helpers for the files beatcut writes:
// project slugs, output file names, and display titles.
package textutil
