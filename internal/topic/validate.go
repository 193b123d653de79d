// Package topic 实现主题名/主题过滤器校验与客户端侧的订阅路由树
package topic

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidTopic = errors.New("invalid topic")

// ValidateName 校验发布用的主题名：非空、不超过65535字节、不含通配符和 NUL
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty topic name", ErrInvalidTopic)
	}
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: topic name longer than %d bytes", ErrInvalidTopic, math.MaxUint16)
	}
	if strings.ContainsAny(name, "+#\x00") {
		return fmt.Errorf("%w: %q contains wildcard or NUL", ErrInvalidTopic, name)
	}
	return nil
}

// ValidateFilter 校验订阅用的主题过滤器，'#' 必须独占最后一层，'+' 必须独占一层
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty topic filter", ErrInvalidTopic)
	}
	if len(filter) > math.MaxUint16 {
		return fmt.Errorf("%w: topic filter longer than %d bytes", ErrInvalidTopic, math.MaxUint16)
	}
	if strings.ContainsRune(filter, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidTopic, filter)
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("'#' must be the last level, topic: %s: %w", filter, ErrInvalidTopic)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("'+' must occupy an entire level, topic: %s: %w", filter, ErrInvalidTopic)
		}
	}
	return nil
}

// Match 报告主题名是否匹配过滤器。以 '$' 开头的主题不被首层通配符匹配。
func Match(filter string, name string) bool {
	filterLevels := strings.Split(filter, "/")
	nameLevels := strings.Split(name, "/")
	if strings.HasPrefix(name, "$") && (filterLevels[0] == "+" || filterLevels[0] == "#") {
		return false
	}
	for i, level := range filterLevels {
		if level == "#" {
			return true
		}
		if i >= len(nameLevels) {
			return false
		}
		if level != "+" && level != nameLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(nameLevels)
}
