package main

import "testing"

func TestNormalizePostgresType(t *testing.T) {
	i32 := func(v int32) *int32 { return &v }

	tests := []struct {
		name      string
		dataType  string
		udtName   string
		charLen   *int32
		precision *int32
		scale     *int32
		want      string
	}{
		{name: "varchar with length", dataType: "character varying", udtName: "varchar", charLen: i32(255), want: "varchar(255)"},
		{name: "unbounded varchar", dataType: "character varying", udtName: "varchar", want: "varchar"},
		{name: "char", dataType: "character", udtName: "bpchar", charLen: i32(2), want: "char(2)"},
		{name: "numeric with scale", dataType: "numeric", udtName: "numeric", precision: i32(10), scale: i32(2), want: "numeric(10,2)"},
		{name: "numeric without scale", dataType: "numeric", udtName: "numeric", precision: i32(8), want: "numeric(8,0)"},
		{name: "bare numeric", dataType: "numeric", udtName: "numeric", want: "numeric"},
		{name: "int array", dataType: "ARRAY", udtName: "_int4", want: "int4[]"},
		{name: "enum", dataType: "USER-DEFINED", udtName: "order_status", want: "order_status"},
		{name: "timestamp", dataType: "timestamp with time zone", udtName: "timestamptz", want: "timestamp with time zone"},
		{name: "integer ignores precision", dataType: "integer", udtName: "int4", precision: i32(32), scale: i32(0), want: "integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePostgresType(tt.dataType, tt.udtName, tt.charLen, tt.precision, tt.scale)
			if got != tt.want {
				t.Errorf("normalizePostgresType() = %q, want %q", got, tt.want)
			}
		})
	}
}
