package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

// catalogRoles maintain products, ingredients, recipes and staff records.
var catalogRoles = []string{domain.RoleManager, domain.RoleDeveloper}

func byName[T any](name func(T) string) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Stock().ListProducts(ctx)
		return err
	})
	slices.SortFunc(out, byName(func(p domain.Product) string { return p.Name }))
	return out, err
}

// ProductsForStaff joins a staff member's personal stock with the product
// prices. Lines whose product was removed keep a zero price.
func (s *Service) ProductsForStaff(ctx context.Context, staffID string) ([]domain.StaffProduct, error) {
	var out []domain.StaffProduct
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		out = out[:0]
		held, err := tx.Stock().ListPersonalStock(ctx, staffID)
		if err != nil {
			return err
		}
		for _, h := range held {
			line := domain.StaffProduct{ProductID: h.ProductID, Name: h.ProductName, Stock: h.Stock}
			product, err := tx.Stock().GetProduct(ctx, h.ProductID)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return err
			default:
				line.Price = product.Price
				line.CostPrice = product.CostPrice
			}
			out = append(out, line)
		}
		return nil
	})
	slices.SortFunc(out, byName(func(p domain.StaffProduct) string { return p.Name }))
	return out, err
}

// SaveProduct creates or updates a product. Stock is only taken from the
// request on creation; afterwards it moves through transfers and batches.
func (s *Service) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if _, err := s.requireRole(ctx, catalogRoles...); err != nil {
		return domain.Product{}, err
	}
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return domain.Product{}, apperror.NewValidation("Product name is required.")
	}
	if product.Price.IsNegative() || product.CostPrice.IsNegative() || product.Stock < 0 {
		return domain.Product{}, apperror.NewValidation("Prices and stock cannot be negative.")
	}

	created := product.ID == ""
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if created {
			product.ID = xid.New("product")
		} else {
			existing, err := tx.Stock().GetProduct(ctx, product.ID)
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Product not found.")
			}
			if err != nil {
				return err
			}
			product.Stock = existing.Stock
		}
		return tx.Stock().SaveProduct(ctx, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_save", "product", product.ID, fmt.Sprintf("name=%s,price=%s,created=%t", product.Name, product.Price.StringFixed(2), created))
	return product, nil
}

func (s *Service) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Stock().ListIngredients(ctx)
		return err
	})
	slices.SortFunc(out, byName(func(i domain.Ingredient) string { return i.Name }))
	return out, err
}

// SaveIngredient creates or updates an ingredient. As with products, stock
// is only set on creation; supply approvals and batches move it afterwards.
func (s *Service) SaveIngredient(ctx context.Context, ingredient domain.Ingredient) (domain.Ingredient, error) {
	if _, err := s.requireRole(ctx, catalogRoles...); err != nil {
		return domain.Ingredient{}, err
	}
	ingredient.Name = strings.TrimSpace(ingredient.Name)
	ingredient.Unit = strings.TrimSpace(ingredient.Unit)
	if ingredient.Name == "" || ingredient.Unit == "" {
		return domain.Ingredient{}, apperror.NewValidation("Ingredient name and unit are required.")
	}
	if ingredient.Stock.IsNegative() || ingredient.CostPerUnit.IsNegative() {
		return domain.Ingredient{}, apperror.NewValidation("Stock and cost cannot be negative.")
	}

	created := ingredient.ID == ""
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if created {
			ingredient.ID = xid.New("ingredient")
		} else {
			existing, err := tx.Stock().GetIngredient(ctx, ingredient.ID)
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Ingredient not found.")
			}
			if err != nil {
				return err
			}
			ingredient.Stock = existing.Stock
		}
		return tx.Stock().SaveIngredient(ctx, ingredient)
	})
	if err != nil {
		return domain.Ingredient{}, err
	}

	s.logAudit(ctx, "ingredient_save", "ingredient", ingredient.ID, fmt.Sprintf("name=%s,created=%t", ingredient.Name, created))
	return ingredient, nil
}

func (s *Service) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Directory().ListRecipes(ctx)
		return err
	})
	slices.SortFunc(out, byName(func(r domain.Recipe) string { return r.Name }))
	return out, err
}

// SaveRecipe creates or replaces a recipe. Product and ingredient names are
// copied from their documents so batches can snapshot them.
func (s *Service) SaveRecipe(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error) {
	actor, err := s.requireRole(ctx, catalogRoles...)
	if err != nil {
		return domain.Recipe{}, err
	}
	recipe.Name = strings.TrimSpace(recipe.Name)
	if recipe.Name == "" || recipe.ProductID == "" || len(recipe.Ingredients) == 0 {
		return domain.Recipe{}, apperror.NewValidation("A recipe needs a name, a product and at least one ingredient.")
	}
	for _, ri := range recipe.Ingredients {
		if ri.IngredientID == "" || !ri.Quantity.IsPositive() {
			return domain.Recipe{}, apperror.NewValidation("Every recipe ingredient needs a positive quantity.")
		}
	}

	created := recipe.ID == ""
	var name string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if created {
			recipe.ID = xid.New("recipe")
		} else if _, err := tx.Directory().GetRecipe(ctx, recipe.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Recipe not found.")
			}
			return err
		}

		product, err := tx.Stock().GetProduct(ctx, recipe.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Product not found.")
		}
		if err != nil {
			return err
		}
		recipe.ProductName = product.Name

		for i, ri := range recipe.Ingredients {
			ing, err := tx.Stock().GetIngredient(ctx, ri.IngredientID)
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Ingredient not found.").WithDetail("ingredientId", ri.IngredientID)
			}
			if err != nil {
				return err
			}
			recipe.Ingredients[i].IngredientName = ing.Name
			if recipe.Ingredients[i].Unit == "" {
				recipe.Ingredients[i].Unit = ing.Unit
			}
		}

		if name, err = staffName(ctx, tx, actor); err != nil {
			return err
		}
		return tx.Directory().SaveRecipe(ctx, recipe)
	})
	if err != nil {
		return domain.Recipe{}, err
	}

	if created {
		s.logProduction(ctx, actor, name, "Recipe Created", "Created new recipe: "+recipe.Name)
	} else {
		s.logProduction(ctx, actor, name, "Recipe Updated", "Updated recipe: "+recipe.Name)
	}
	s.logAudit(ctx, "recipe_save", "recipe", recipe.ID, "product="+recipe.ProductID)
	return recipe, nil
}

func (s *Service) DeleteRecipe(ctx context.Context, recipeID string) error {
	actor, err := s.requireRole(ctx, catalogRoles...)
	if err != nil {
		return err
	}

	var recipeName, name string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		recipe, err := tx.Directory().GetRecipe(ctx, recipeID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Recipe not found.")
		}
		if err != nil {
			return err
		}
		recipeName = recipe.Name
		if name, err = staffName(ctx, tx, actor); err != nil {
			return err
		}
		return tx.Directory().DeleteRecipe(ctx, recipeID)
	})
	if err != nil {
		return err
	}

	s.logProduction(ctx, actor, name, "Recipe Deleted", "Deleted recipe: "+recipeName)
	s.logAudit(ctx, "recipe_delete", "recipe", recipeID, "")
	return nil
}

// ListStaff returns the active staff members.
func (s *Service) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	var out []domain.Staff
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.Directory().ListStaff(ctx)
		if err != nil {
			return err
		}
		out = slices.DeleteFunc(all, func(st domain.Staff) bool { return !st.IsActive })
		return nil
	})
	slices.SortFunc(out, byName(func(st domain.Staff) string { return st.Name }))
	return out, err
}

func (s *Service) SaveStaff(ctx context.Context, staff domain.Staff) (domain.Staff, error) {
	if _, err := s.requireRole(ctx, catalogRoles...); err != nil {
		return domain.Staff{}, err
	}
	staff.Name = strings.TrimSpace(staff.Name)
	if staff.Name == "" {
		return domain.Staff{}, apperror.NewValidation("Staff name is required.")
	}
	if !slices.Contains(domain.Roles, staff.Role) {
		return domain.Staff{}, apperror.NewValidation("Unknown role.").WithDetail("role", staff.Role)
	}

	created := staff.ID == ""
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if created {
			staff.ID = xid.New("staff")
		} else if _, err := tx.Directory().GetStaff(ctx, staff.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Staff member not found.")
			}
			return err
		}
		return tx.Directory().SaveStaff(ctx, staff)
	})
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, "staff_save", "staff", staff.ID, fmt.Sprintf("role=%s,active=%t", staff.Role, staff.IsActive))
	return staff, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Sales().ListCustomers(ctx)
		return err
	})
	slices.SortFunc(out, byName(func(c domain.Customer) string { return c.Name }))
	return out, err
}

// SaveCustomer registers or edits a customer. Any signed-in staff member may
// do this; balances only move through sales and approved debt payments.
func (s *Service) SaveCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return domain.Customer{}, apperror.NewValidation("Customer name is required.")
	}
	if customer.ID == domain.WalkInCustomerID {
		return domain.Customer{}, apperror.NewValidation("The walk-in customer cannot be edited.")
	}

	created := customer.ID == ""
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if created {
			customer.ID = xid.New("customer")
			customer.AmountOwed, customer.AmountPaid = decimal.Zero, decimal.Zero
		} else {
			existing, err := tx.Sales().GetCustomer(ctx, customer.ID)
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound("Customer not found.")
			}
			if err != nil {
				return err
			}
			customer.AmountOwed, customer.AmountPaid = existing.AmountOwed, existing.AmountPaid
		}
		return tx.Sales().SaveCustomer(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_save", "customer", customer.ID, fmt.Sprintf("created=%t", created))
	return customer, nil
}
