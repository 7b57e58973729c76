package router

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// APIModule 在 /api/v1 下挂载自己的路由
type APIModule interface{ MountAPI(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

type Registry struct {
	mu   sync.RWMutex
	mods []APIModule
}

func (r *Registry) Register(m APIModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, m)
}

// MountAll 按优先级挂载，同级保持注册顺序
func (r *Registry) MountAll(api *gin.RouterGroup) {
	r.mu.RLock()
	mods := append([]APIModule(nil), r.mods...)
	r.mu.RUnlock()

	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAPI(api)
	}
}

var defaultRegistry = &Registry{}

// Register 注册到默认 registry
func Register(m APIModule) { defaultRegistry.Register(m) }

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
