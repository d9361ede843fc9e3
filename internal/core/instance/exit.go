package instance

import "sync"

// exitHook 退出钩子，以指针标识便于注销
type exitHook struct {
	fn func()
}

var (
	exitMu    sync.Mutex
	exitHooks []*exitHook
)

// OnExit 注册进程退出前执行的清理函数，返回的函数注销该钩子
//
// 注销可重复调用。守卫在 Release 时注销自己的钩子，反复获取释放不会累积。
func OnExit(fn func()) (remove func()) {
	if fn == nil {
		return func() {}
	}
	h := &exitHook{fn: fn}
	exitMu.Lock()
	exitHooks = append(exitHooks, h)
	exitMu.Unlock()

	return func() {
		exitMu.Lock()
		defer exitMu.Unlock()
		for i, x := range exitHooks {
			if x == h {
				exitHooks = append(exitHooks[:i], exitHooks[i+1:]...)
				return
			}
		}
	}
}

// RunExitHooks 按注册的逆序执行并清空退出钩子
func RunExitHooks() {
	exitMu.Lock()
	hooks := exitHooks
	exitHooks = nil
	exitMu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("退出钩子 panic", "panic", r)
				}
			}()
			hooks[i].fn()
		}()
	}
}

func exitHookCount() int {
	exitMu.Lock()
	defer exitMu.Unlock()
	return len(exitHooks)
}
