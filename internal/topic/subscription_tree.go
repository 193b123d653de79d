package topic

import (
	"github.com/hashicorp/golang-lru/v2/expirable"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	filter string
	value  V
}

// TopicTreeNode 主题订阅树节点
type TopicTreeNode[V any] struct {
	Path  string // 物化路径（如 "sport/football"）
	Level string // 当前层级名称（如 "football"）

	// 直接子节点（精确匹配）
	Children map[string]*TopicTreeNode[V]

	// 通配符
	WildcardPlus *TopicTreeNode[V] // "+" 通配符子节点（单层）
	WildcardHash *entry[V]         // "#" 通配符订阅（多层）

	// 终端订阅（当前路径的精确匹配订阅）
	Terminal *entry[V]
}

// Tree 以主题过滤器为键保存值，并按主题名查找所有匹配的值。
// 匹配结果按主题名缓存，树被修改时缓存失效。
type Tree[V any] struct {
	mu    sync.RWMutex
	root  *TopicTreeNode[V]
	size  int
	cache *expirable.LRU[string, []V]
}

func NewTree[V any]() *Tree[V] {
	return &Tree[V]{
		root:  createNode[V]("", ""),
		cache: expirable.NewLRU[string, []V](256, nil, time.Hour),
	}
}

func (t *Tree[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Insert 插入或替换过滤器对应的值
func (t *Tree[V]) Insert(filter string, value V) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.cache.Purge()

	levels := strings.Split(filter, "/")
	currentNode := t.root
	for i, level := range levels {
		if level == "#" {
			if currentNode.WildcardHash == nil {
				t.size++
			}
			currentNode.WildcardHash = &entry[V]{filter: filter, value: value}
			return nil
		}
		currentNode = getOrCreateNode(currentNode, strings.Join(levels[:i+1], "/"), level)
	}
	if currentNode.Terminal == nil {
		t.size++
	}
	currentNode.Terminal = &entry[V]{filter: filter, value: value}
	return nil
}

// Delete 删除过滤器，返回其是否存在
func (t *Tree[V]) Delete(filter string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	levels := strings.Split(filter, "/")
	path := []*TopicTreeNode[V]{t.root}
	currentNode := t.root
	deleted := false
	for _, level := range levels {
		if level == "#" {
			deleted = currentNode.WildcardHash != nil
			currentNode.WildcardHash = nil
			break
		}
		currentNode = childOf(currentNode, level)
		if currentNode == nil {
			return false
		}
		path = append(path, currentNode)
	}
	if !strings.HasSuffix(filter, "#") {
		deleted = currentNode.Terminal != nil
		currentNode.Terminal = nil
	}
	if !deleted {
		return false
	}
	t.size--
	t.cache.Purge()
	prune(path)
	return true
}

// Match 返回所有匹配主题名的值
func (t *Tree[V]) Match(name string) []V {
	if cached, ok := t.cache.Get(name); ok {
		return cached
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	// 拆分发布主题为层级数组
	levels := strings.Split(name, "/")
	var results []V

	queue := []*TopicTreeNode[V]{t.root}
	for i, currentLevel := range levels {
		var nextQueue []*TopicTreeNode[V]
		// 以 '$' 开头的系统主题不被首层通配符匹配
		wildcards := i > 0 || !strings.HasPrefix(name, "$")

		for _, node := range queue {
			// 1. 收集当前节点的 # 通配符订阅
			if wildcards && node.WildcardHash != nil {
				results = append(results, node.WildcardHash.value)
			}
			// 2. 精确匹配子节点
			if child, ok := node.Children[currentLevel]; ok {
				nextQueue = append(nextQueue, child)
			}
			// 3. 处理 + 通配符子节点
			if wildcards && node.WildcardPlus != nil {
				nextQueue = append(nextQueue, node.WildcardPlus)
			}
		}

		queue = nextQueue
		// 提前终止：队列为空时无需继续
		if len(queue) == 0 {
			break
		}
	}

	// 收集终端节点的精确订阅，"a/#" 同样匹配 "a"
	for _, node := range queue {
		if node.Terminal != nil {
			results = append(results, node.Terminal.value)
		}
		if node.WildcardHash != nil {
			results = append(results, node.WildcardHash.value)
		}
	}

	t.cache.Add(name, results)
	return results
}
