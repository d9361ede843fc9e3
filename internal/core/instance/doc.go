// Package instance 防止同一主机上运行同一应用的多个实例
//
// 三种可互换的策略，由配置选择：
//
//   - lockfile: 以 O_CREATE|O_EXCL 独占创建标记文件，内容为进程号；
//     文件已存在时检查记录的进程是否存活，已死亡则删除后重试一次；
//     内容损坏且修改时间超过宽限期的文件同样视为陈旧
//   - pidfile:  读取进程号文件，记录的进程存活且不是自己时拒绝，
//     其余情况（文件缺失、不可读、内容损坏、进程已死）直接覆盖
//   - port:     试探绑定目标端口，EADDRINUSE 表示已有实例；必须指定端口
//
// 获取成功后注册退出钩子删除标记，Release 时注销，进程正常退出前调用 RunExitHooks。
//
//	g, err := instance.New(instance.MethodLockFile, instance.Options{AppName: "lanpeer"})
//	ok, err := g.TryAcquire()
//	if !ok {
//	    return instance.ErrInstanceRunning
//	}
//	defer g.Release()
package instance
