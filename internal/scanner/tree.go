package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileNode is one node of the nested project file tree handed to the
// presentation layer on completion.
type FileNode struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	IsDirectory bool        `json:"isDirectory"`
	IsLeaf      bool        `json:"isLeaf"`
	Children    []*FileNode `json:"children"`
}

// FileTree builds the nested file tree for projectPath, applying the ignore
// sets at every level.
func (sc *Scanner) FileTree(projectPath string) (*FileNode, error) {
	return sc.buildNode(projectPath, projectPath)
}

func (sc *Scanner) buildNode(projectPath, currentPath string) (*FileNode, error) {
	rel, err := filepath.Rel(projectPath, currentPath)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	info, err := os.Stat(currentPath)
	if err != nil {
		return nil, err
	}

	id := rel
	if id == "." {
		id = "/"
	} else if !strings.HasPrefix(id, "/") {
		id = "/" + id
	}

	node := &FileNode{
		ID:          id,
		Name:        filepath.Base(currentPath),
		Path:        currentPath,
		IsDirectory: info.IsDir(),
		IsLeaf:      !info.IsDir(),
		Children:    []*FileNode{},
	}

	if !info.IsDir() {
		return node, nil
	}

	entries, err := os.ReadDir(currentPath)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		childRel := rel + "/" + entry.Name()
		if rel == "." {
			childRel = entry.Name()
		}
		if sc.ignored(childRel) || sc.config.IgnoredFiles[entry.Name()] {
			continue
		}
		child, err := sc.buildNode(projectPath, filepath.Join(currentPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// TextFileTree renders the project tree as indented text with box-drawing
// branches, directories before files, both sorted. This rendering is the
// user-content input of the first project-synthesis round.
func (sc *Scanner) TextFileTree(projectPath string) (string, error) {
	lines := []string{filepath.Base(projectPath)}
	if err := sc.writeTextTree(projectPath, projectPath, "", &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func (sc *Scanner) writeTextTree(projectPath, currentPath, prefix string, lines *[]string) error {
	entries, err := os.ReadDir(currentPath)
	if err != nil {
		return err
	}

	var directories, files []string
	for _, entry := range entries {
		rel, err := filepath.Rel(projectPath, filepath.Join(currentPath, entry.Name()))
		if err != nil {
			return err
		}
		if sc.ignored(filepath.ToSlash(rel)) || sc.config.IgnoredFiles[entry.Name()] {
			continue
		}
		if entry.IsDir() {
			directories = append(directories, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(directories)
	sort.Strings(files)
	all := append(directories, files...)

	for i, name := range all {
		isLast := i == len(all)-1
		branch := "├── "
		childPrefix := prefix + "│   "
		if isLast {
			branch = "└── "
			childPrefix = prefix + "    "
		}
		*lines = append(*lines, prefix+branch+name)

		itemPath := filepath.Join(currentPath, name)
		info, err := os.Stat(itemPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := sc.writeTextTree(projectPath, itemPath, childPrefix, lines); err != nil {
				return err
			}
		}
	}
	return nil
}
