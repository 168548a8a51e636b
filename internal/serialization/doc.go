// Package serialization saves and restores named tensor values.
//
// Values are stored in the SafeTensors layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON object, tensor name -> {dtype, shape, data_offsets}]
//	[tensor data: raw little-endian bytes, in header order]
//
// Element types map to the SafeTensors dtype strings BOOL, F32, F64, I8, I16,
// I32, I64, U8, U16, U32 and U64. An optional "__metadata__" entry carries
// string key/value pairs.
//
// Example usage:
//
//	saver := serialization.NewSaver("weights")
//	if err := saver.WriteValues(map[string]*tensor.Value{"w": w}); err != nil {
//	    return err
//	}
//	values, err := saver.ReadValues()
package serialization
