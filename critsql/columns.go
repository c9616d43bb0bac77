package critsql

import (
	"reflect"
	"sync"
)

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index  []int
	column string
}

// typeCache holds the column layout of every entity type seen so far.
var typeCache sync.Map // map[reflect.Type][]fieldInfo

// fieldsOf returns the "db"-tagged fields of t in declaration order,
// descending into embedded structs.
func fieldsOf(t reflect.Type) []fieldInfo {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.([]fieldInfo)
	}

	fields := collectFields(t, nil)
	typeCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []fieldInfo {
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		if field.Anonymous {
			fields = append(fields, collectFields(field.Type, index)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		fields = append(fields, fieldInfo{index: index, column: tag})
	}
	return fields
}

// columnsOf returns the column names of T.
func columnsOf[T any]() []string {
	fields := fieldsOf(reflect.TypeOf((*T)(nil)))
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// valuesOf returns the column values of entity in column order.
func valuesOf[T any](entity *T) []interface{} {
	rv := reflect.ValueOf(entity).Elem()
	fields := fieldsOf(rv.Type())
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i] = rv.FieldByIndex(f.index).Interface()
	}
	return values
}
