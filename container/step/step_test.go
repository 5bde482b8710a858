//go:build linux

package step

import (
	"os"
	"testing"

	"github.com/fonsecagoncalo/tincan/container"
)

func validatedContainer(t *testing.T, configure func(c *container.Container)) *container.Container {
	t.Helper()
	c := container.NewContainer("t", container.CommandConfig{Program: "/bin/true"})
	if configure != nil {
		configure(c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return c
}

func TestBuildPlainCommandChain(t *testing.T) {
	c := validatedContainer(t, nil)
	s := Build(c)
	if _, ok := s.(*RunCommand); !ok {
		t.Fatalf("expected *RunCommand at the root of a bare command chain, got %T", s)
	}
}

func TestBuildCarriesWorkingDirIntoUserNamespaceRemainder(t *testing.T) {
	c := validatedContainer(t, func(c *container.Container) {
		c.SetWorkingDirectory("/tmp")
		if err := c.CreateUserNamespace(container.UserNamespaceConfig{
			UidMap: container.IdMap{Kind: container.UserIDMap, Entries: []container.IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
			GidMap: container.IdMap{Kind: container.GroupIDMap, Entries: []container.IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		}); err != nil {
			t.Fatalf("CreateUserNamespace: %v", err)
		}
	})

	s := Build(c)
	un, ok := s.(*UserNamespace)
	if !ok {
		t.Fatalf("expected *UserNamespace at the root, got %T", s)
	}
	if un.Remainder.UserNamespace != nil {
		t.Fatalf("expected remainder to have UserNamespace cleared")
	}
	if un.Remainder.WorkingDir == nil || un.Remainder.WorkingDir.Path != "/tmp" {
		t.Fatalf("expected remainder to carry the working directory forward")
	}
}

func TestBuildOrdersMountBeforePid(t *testing.T) {
	c := validatedContainer(t, func(c *container.Container) {
		if err := c.CreateUserNamespace(container.UserNamespaceConfig{
			UidMap: container.IdMap{Kind: container.UserIDMap, Entries: []container.IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
			GidMap: container.IdMap{Kind: container.GroupIDMap, Entries: []container.IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		}); err != nil {
			t.Fatalf("CreateUserNamespace: %v", err)
		}
		c.CreateMountNamespace(container.MountNamespaceConfig{})
		c.CreatePidNamespace()
	})

	root := Build(c)
	un := root.(*UserNamespace)

	un.Remainder.MarkValidatedForResume()
	inner := buildWithinProcess(un.Remainder)
	mnt, ok := inner.(*MountNamespace)
	if !ok {
		t.Fatalf("expected mount namespace to run before pid namespace, got %T", inner)
	}
	if _, ok := mnt.Next.(*PidNamespace); !ok {
		t.Fatalf("expected pid namespace step to follow mount namespace, got %T", mnt.Next)
	}
}

func TestRunReportsCurrentPidWhenNoNamespaceReexecs(t *testing.T) {
	c := validatedContainer(t, nil)

	var reported int
	var calls int
	_, err := Run(c, func(pid int) {
		calls++
		reported = pid
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected onStart to be called exactly once, got %d", calls)
	}
	if reported != os.Getpid() {
		t.Fatalf("expected reported pid %d to be the current process, got %d", os.Getpid(), reported)
	}
}

func TestBuildPanicsOnNotValidated(t *testing.T) {
	c := container.NewContainer("t", container.CommandConfig{Program: "/bin/true"})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Build to panic on a NotValidated container")
		}
	}()
	Build(c)
}
