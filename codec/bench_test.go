package codec

import "testing"

func benchmarkValue() Value {
	return List(
		List(Int(1), Float(2.5), String("Calc.add")),
		Map(map[string]Value{"factor": Int(4), "tags": List(String("a"), String("b"))}),
	)
}

func BenchmarkCodecJSON(b *testing.B) {
	cdc := GetCodec(CodecTypeJSON)
	v := benchmarkValue()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(v)
		cdc.Decode(data)
	}
}

func BenchmarkCodecBinary(b *testing.B) {
	cdc := GetCodec(CodecTypeBinary)
	v := benchmarkValue()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(v)
		cdc.Decode(data)
	}
}
