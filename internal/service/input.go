package service

import (
	"sort"
	"strings"
)

// normalizeSerials 去除首尾空白，拒绝空值与重复值，保持原有顺序
func normalizeSerials(serials []string) ([]string, error) {
	result := make([]string, 0, len(serials))
	seen := make(map[string]struct{}, len(serials))
	for _, raw := range serials {
		serial := strings.TrimSpace(raw)
		if serial == "" {
			return nil, validation("serial number must not be blank")
		}
		if _, ok := seen[serial]; ok {
			return nil, validation("serial %s is duplicated in request", serial)
		}
		seen[serial] = struct{}{}
		result = append(result, serial)
	}
	return result, nil
}

// normalizeIDs 校验 ID 列表：非空、无零值、无重复，超出上限时拒绝
func normalizeIDs(ids []uint, field string, maxSize int) ([]uint, error) {
	if len(ids) == 0 {
		return nil, validation("%s must not be empty", field)
	}
	if maxSize > 0 && len(ids) > maxSize {
		return nil, validation("%s exceeds batch limit of %d", field, maxSize)
	}
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, validation("%s contains an invalid id", field)
		}
		if _, ok := seen[id]; ok {
			return nil, validation("%s contains duplicate id %d", field, id)
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}

// missingIDs 返回 want 中未出现在 found 的 ID（升序）
func missingIDs(want []uint, found map[uint]struct{}) []uint {
	missing := make([]uint, 0)
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func normalizeNumber(value string) string {
	return strings.TrimSpace(value)
}
