package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"askforge-client/admin"

	"github.com/charmbracelet/lipgloss"
)

// userMenu runs the interactive account manager until the operator picks
// 0 or input ends.
func userMenu(ctx context.Context, store *admin.Store, c *console) error {
	for {
		c.header()
		c.println(titleStyle.Render("MENU PRINCIPAL"))
		c.println(dimStyle.Render(strings.Repeat("-", 30)))
		c.println("1. Listar usuários")
		c.println("2. Criar usuário")
		c.println("3. Editar usuário")
		c.println("4. Excluir usuário")
		c.println("5. Resetar senha")
		c.println("0. Sair")
		c.println(dimStyle.Render(strings.Repeat("-", 30)))

		opt, err := c.ask("\nEscolha uma opção: ")
		if err != nil {
			return nil
		}

		var action func(context.Context, *admin.Store, *console) error
		switch opt {
		case "1":
			action = listUsers
		case "2":
			action = createUser
		case "3":
			action = editUser
		case "4":
			action = deleteUser
		case "5":
			action = resetPassword
		case "0":
			c.println("\nAté logo!")
			return nil
		default:
			c.fail("Opção inválida!")
			if c.pause() != nil {
				return nil
			}
			continue
		}

		c.header()
		if err := action(ctx, store, c); err != nil {
			if errors.Is(err, errInputClosed) {
				return nil
			}
			c.fail("%v", err)
		}
		if c.pause() != nil {
			return nil
		}
	}
}

var errInputClosed = errors.New("input closed")

// prompt helpers that turn end of input into errInputClosed.
func ask(c *console, prompt string) (string, error) {
	s, err := c.ask(prompt)
	if err != nil {
		return "", errInputClosed
	}
	return s, nil
}

func askPassword(c *console, prompt string) (string, error) {
	s, err := c.askPassword(prompt)
	if err != nil {
		return "", errInputClosed
	}
	return s, nil
}

func askYes(c *console, prompt string) (bool, error) {
	ok, err := c.yes(prompt)
	if err != nil {
		return false, errInputClosed
	}
	return ok, nil
}

func listUsers(ctx context.Context, store *admin.Store, c *console) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		c.println("Nenhum usuário cadastrado.")
		return nil
	}

	cell := func(w int) lipgloss.Style { return lipgloss.NewStyle().Width(w) }
	row := func(id, name, email, group, reg, chat string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top,
			cell(6).Render(id), cell(26).Render(name), cell(31).Render(email),
			cell(11).Render(group), cell(11).Render(reg), cell(10).Render(chat))
	}

	c.println(dimStyle.Render(strings.Repeat("-", 95)))
	c.println(titleStyle.Render(row("ID", "Nome", "Email", "Grupo", "Cadastrar", "Bate-papo")))
	c.println(dimStyle.Render(strings.Repeat("-", 95)))
	for _, u := range users {
		c.println(row(strconv.FormatInt(u.ID, 10), truncate(u.Name, 25), truncate(u.Email, 30),
			u.Group, check(u.Register), check(u.Chat)))
	}
	c.println(dimStyle.Render(strings.Repeat("-", 95)))
	c.printf("Total: %d usuário(s)\n", len(users))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func askGroup(c *console, keep bool) (string, error) {
	c.println("1. Administrador (adm)")
	c.println("2. Usuário comum (user)")
	prompt := "Escolha [1/2]: "
	if keep {
		c.println("3. Manter atual")
		prompt = "Escolha [1/2/3]: "
	}
	choice, err := ask(c, prompt)
	if err != nil {
		return "", err
	}
	switch choice {
	case "1":
		return admin.GroupAdmin, nil
	case "2":
		return admin.GroupUser, nil
	}
	if keep {
		return "", nil
	}
	return admin.GroupUser, nil
}

func askPermissions(c *console) (admin.Permissions, error) {
	var p admin.Permissions
	var err error
	if p.Register, err = askYes(c, "Pode cadastrar documentos? [s/N]: "); err != nil {
		return p, err
	}
	p.Chat, err = askYes(c, "Pode usar bate-papo? [s/N]: ")
	return p, err
}

func createUser(ctx context.Context, store *admin.Store, c *console) error {
	c.println(titleStyle.Render("--- CRIAR NOVO USUÁRIO ---"))
	c.println()

	var nu admin.NewUser
	var err error
	if nu.Name, err = ask(c, "Nome: "); err != nil {
		return err
	}
	if nu.Name == "" {
		return admin.ErrNameRequired
	}
	if nu.Email, err = ask(c, "Email: "); err != nil {
		return err
	}
	if nu.Email == "" {
		return admin.ErrEmailRequired
	}
	if taken, err := store.EmailTaken(ctx, nu.Email, 0); err != nil {
		return err
	} else if taken {
		return admin.ErrEmailTaken
	}
	if nu.Password, err = askPassword(c, "Senha: "); err != nil {
		return err
	}
	if len(nu.Password) < admin.MinPasswordLength {
		return admin.ErrPasswordTooShort
	}
	if nu.Confirm, err = askPassword(c, "Confirmar senha: "); err != nil {
		return err
	}

	c.println("\nTipo de usuário:")
	if nu.Group, err = askGroup(c, false); err != nil {
		return err
	}
	if nu.Group == admin.GroupUser {
		c.println("\nPermissões:")
		if nu.Permissions, err = askPermissions(c); err != nil {
			return err
		}
	}

	id, err := store.CreateUser(ctx, nu)
	if err != nil {
		return err
	}
	c.println()
	c.success("Usuário '%s' criado com sucesso! (ID: %d)", nu.Name, id)
	return nil
}

// pickUser lists users and reads an id; ok is false when the operator
// cancels with 0.
func pickUser(ctx context.Context, store *admin.Store, c *console, prompt string) (*admin.User, bool, error) {
	if err := listUsers(ctx, store, c); err != nil {
		return nil, false, err
	}
	input, err := ask(c, prompt)
	if err != nil {
		return nil, false, err
	}
	if input == "0" {
		return nil, false, nil
	}
	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return nil, false, errors.New("ID inválido")
	}
	u, err := store.GetUser(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func editUser(ctx context.Context, store *admin.Store, c *console) error {
	c.println(titleStyle.Render("--- EDITAR USUÁRIO ---"))
	c.println()

	u, ok, err := pickUser(ctx, store, c, "\nDigite o ID do usuário para editar (0 para cancelar): ")
	if err != nil || !ok {
		return err
	}

	c.printf("\nEditando: %s (%s)\n", u.Name, u.Email)
	c.println(dimStyle.Render("Deixe em branco para manter o valor atual."))
	c.println()

	var upd admin.UserUpdate
	if upd.Name, err = ask(c, fmt.Sprintf("Nome [%s]: ", u.Name)); err != nil {
		return err
	}
	if upd.Email, err = ask(c, fmt.Sprintf("Email [%s]: ", u.Email)); err != nil {
		return err
	}
	if upd.Email != "" && upd.Email != u.Email {
		if taken, err := store.EmailTaken(ctx, upd.Email, u.ID); err != nil {
			return err
		} else if taken {
			return errors.New("Este email já está em uso")
		}
	}

	c.println("\nAlterar senha?")
	if upd.Password, err = askPassword(c, "Digite nova senha (ou Enter para manter): "); err != nil {
		return err
	}
	if upd.Password != "" {
		if len(upd.Password) < admin.MinPasswordLength {
			return admin.ErrPasswordTooShort
		}
		if upd.Confirm, err = askPassword(c, "Confirmar nova senha: "); err != nil {
			return err
		}
	}

	c.printf("\nGrupo atual: %s\n", u.Group)
	if upd.Group, err = askGroup(c, true); err != nil {
		return err
	}

	group := upd.Group
	if group == "" {
		group = u.Group
	}
	if group == admin.GroupUser {
		c.printf("\nPermissões atuais: Cadastrar=%s, Bate-papo=%s\n", check(u.Register), check(u.Chat))
		change, err := askYes(c, "Alterar permissões? [s/N]: ")
		if err != nil {
			return err
		}
		if change {
			p, err := askPermissions(c)
			if err != nil {
				return err
			}
			upd.Permissions = &p
		}
	}

	if err := store.UpdateUser(ctx, u.ID, upd); err != nil {
		return err
	}
	c.println()
	c.success("Usuário atualizado com sucesso!")
	return nil
}

func deleteUser(ctx context.Context, store *admin.Store, c *console) error {
	c.println(titleStyle.Render("--- EXCLUIR USUÁRIO ---"))
	c.println()

	u, ok, err := pickUser(ctx, store, c, "\nDigite o ID do usuário para excluir (0 para cancelar): ")
	if err != nil || !ok {
		return err
	}

	c.println()
	c.warn("Você está prestes a excluir: %s (%s)", u.Name, u.Email)
	c.println("Esta ação não pode ser desfeita!")

	confirm, err := ask(c, "\nDigite 'EXCLUIR' para confirmar: ")
	if err != nil {
		return err
	}
	if confirm != "EXCLUIR" {
		c.println("Operação cancelada.")
		return nil
	}

	if err := store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	c.println()
	c.success("Usuário excluído com sucesso!")
	return nil
}

func resetPassword(ctx context.Context, store *admin.Store, c *console) error {
	c.println(titleStyle.Render("--- RESETAR SENHA ---"))
	c.println()

	u, ok, err := pickUser(ctx, store, c, "\nDigite o ID do usuário (0 para cancelar): ")
	if err != nil || !ok {
		return err
	}

	c.printf("\nResetando senha de: %s (%s)\n", u.Name, u.Email)
	pw, err := askPassword(c, "Nova senha: ")
	if err != nil {
		return err
	}
	if len(pw) < admin.MinPasswordLength {
		return admin.ErrPasswordTooShort
	}
	confirm, err := askPassword(c, "Confirmar nova senha: ")
	if err != nil {
		return err
	}

	if err := store.ResetPassword(ctx, u.ID, pw, confirm); err != nil {
		return err
	}
	c.println()
	c.success("Senha resetada com sucesso!")
	return nil
}
