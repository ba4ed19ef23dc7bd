package keyvaluedb

import (
	"errors"
	"reflect"
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrValueIsNil = errors.New("value is nil")
)

func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

func CheckValue(val any) error {
	if val == nil {
		return ErrValueIsNil
	}
	if v := reflect.ValueOf(val); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrValueIsNil
	}
	return nil
}

func CheckKeyAndValue(key []byte, val any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return CheckValue(val)
}
