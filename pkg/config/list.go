package config

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
}

func iterateConfiguration(conf *Config) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, -1}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get("yaml")
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

// List writes every option of conf and its value to w, one per line.
func List(w io.Writer, conf *Config) error {
	tw := new(tabwriter.Writer)
	tw.Init(w, 0, 8, 1, ' ', 0)

	it := iterateConfiguration(conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}

		switch {
		case field.Kind() == reflect.Ptr && field.IsNil():
			fmt.Fprintf(tw, "%s\t<not defined>\n", fieldName)
		case field.Kind() == reflect.Ptr:
			fmt.Fprintf(tw, "%s\t%v\n", fieldName, field.Elem())
		case field.IsZero():
			fmt.Fprintf(tw, "%s\t<not defined>\n", fieldName)
		default:
			fmt.Fprintf(tw, "%s\t%v\n", fieldName, field)
		}
	}
	return tw.Flush()
}
