package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Fields представляет поля сущности в виде JSON объекта.
// Используется и как полный снимок сущности, и как частичный patch.
type Fields map[string]any

// Clone создает глубокую копию полей через JSON round-trip,
// чтобы числа и вложенные значения имели одинаковое представление
// независимо от того, пришли они от вызывающего кода или из хранилища.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		// Неподдерживаемые JSON значения - делаем поверхностную копию
		out := make(Fields, len(f))
		for k, v := range f {
			out[k] = v
		}
		return out
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Merge возвращает новый набор полей: f с наложенным patch.
// Значение nil в patch удаляет поле.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range patch.Clone() {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Keys возвращает отсортированный список имен полей
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldEqual сравнивает значение поля key в двух наборах.
// Сравнение идет по JSON представлению, поэтому 5 и 5.0 равны.
func (f Fields) FieldEqual(other Fields, key string) bool {
	a, okA := f[key]
	b, okB := other[key]
	if okA != okB {
		return false
	}
	return jsonEqual(a, b)
}

// Equal сравнивает два набора полей целиком
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for k := range f {
		if !f.FieldEqual(other, k) {
			return false
		}
	}
	return true
}

// Diff возвращает отсортированные имена полей, значения которых различаются
func (f Fields) Diff(other Fields) []string {
	seen := make(map[string]struct{}, len(f)+len(other))
	var diff []string
	for _, set := range []Fields{f, other} {
		for k := range set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if !f.FieldEqual(other, k) {
				diff = append(diff, k)
			}
		}
	}
	sort.Strings(diff)
	return diff
}

// Pick возвращает подмножество полей с указанными именами.
// Отсутствующие в f поля попадают в результат как nil (удаление при Merge).
func (f Fields) Pick(keys []string) Fields {
	out := make(Fields, len(keys))
	for _, k := range keys {
		out[k] = f[k]
	}
	return out.Clone()
}

func jsonEqual(a, b any) bool {
	da, errA := json.Marshal(a)
	db, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(da, db)
}
