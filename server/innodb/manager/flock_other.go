//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package manager

import "os"

// 没有 flock 的平台只靠进程内的互斥锁，一个数据目录只能跑一个进程
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
