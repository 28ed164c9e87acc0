package main

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// parseArgs parses each command line argument as a JSON value. Arguments
// which are not valid JSON are taken as strings.
func parseArgs(args []string) ([]interface{}, error) {
	ret := make([]interface{}, 0, len(args))
	for i, arg := range args {
		dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil || dec.More() {
			ret = append(ret, arg)
			continue
		}
		w, err := toWire(v)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		ret = append(ret, w)
	}
	return ret, nil
}

// toWire converts json.Number to int64 or float64 so that numbers are sent
// as msgpack numbers.
func toWire(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case []interface{}:
		for i := range v {
			e, err := toWire(v[i])
			if err != nil {
				return nil, err
			}
			v[i] = e
		}
		return v, nil
	case map[string]interface{}:
		for k := range v {
			e, err := toWire(v[k])
			if err != nil {
				return nil, err
			}
			v[k] = e
		}
		return v, nil
	default:
		return v, nil
	}
}
