package topic

func createNode[V any](path string, level string) *TopicTreeNode[V] {
	return &TopicTreeNode[V]{
		Path:     path,
		Level:    level,
		Children: map[string]*TopicTreeNode[V]{},
	}
}

func childOf[V any](parent *TopicTreeNode[V], level string) *TopicTreeNode[V] {
	if level == "+" {
		return parent.WildcardPlus
	}
	return parent.Children[level]
}

func getOrCreateNode[V any](parent *TopicTreeNode[V], path string, level string) *TopicTreeNode[V] {
	if result := childOf(parent, level); result != nil {
		return result
	}
	result := createNode[V](path, level)
	if level == "+" {
		parent.WildcardPlus = result
	} else {
		parent.Children[level] = result
	}
	return result
}

func (node *TopicTreeNode[V]) empty() bool {
	return node.Terminal == nil && node.WildcardHash == nil && node.WildcardPlus == nil && len(node.Children) == 0
}

// prune 自底向上移除空节点，path[0] 为根节点
func prune[V any](path []*TopicTreeNode[V]) {
	for i := len(path) - 1; i > 0; i-- {
		node, parent := path[i], path[i-1]
		if !node.empty() {
			return
		}
		if node.Level == "+" {
			parent.WildcardPlus = nil
		} else {
			delete(parent.Children, node.Level)
		}
	}
}
