// Package layout encodes and decodes fixed-layout binary records.
//
// A Schema is an ordered list of fields. Each field is a scalar with an
// explicit width, signedness and byte order, a reserved padding span, or a
// nested schema. There is no implicit alignment: padding is declared as
// Reserved fields and the record size is the sum of field widths.
//
//	stat := layout.MustSchema("filestat",
//		layout.U64("dev"),
//		layout.U8("filetype"),
//		layout.Reserved(7),
//		layout.U64("size"),
//	)
//	b, err := stat.Encode(layout.Record{"dev": 1, "filetype": 4, "size": 10})
//	rec, err := stat.Decode(b)
//
// Scalar access goes through a fixed width×byte-order table; host byte order
// never leaks into the encoded form.
package layout
